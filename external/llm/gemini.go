package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foxseedlab/chumon/internal/model"
	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiClient submits context blocks to the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelName: modelName}, nil
}

// Generate sends every block as a content turn. The last block already is
// the new user text, so NewText is not appended again.
func (g *GeminiClient) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	contents := buildContents(req.Blocks)
	cfg := buildConfig(req.Generation, req.Safety)

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		slog.Warn("gemini response carried no text", "model", g.modelName, "candidates", len(res.Candidates))
	}
	return &model.Response{Text: text}, nil
}

func buildContents(blocks []model.Block) []*genai.Content {
	contents := make([]*genai.Content, 0, len(blocks))
	for _, b := range blocks {
		role := genai.RoleUser
		if b.Role == model.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(b.Text, genai.Role(role)))
	}
	return contents
}

func buildConfig(gen model.GenerationConfig, safety []model.SafetySetting) *genai.GenerateContentConfig {
	temp := gen.Temperature
	topP := gen.TopP
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: gen.MaxOutputTokens,
	}
	// Zero leaves top-k to the model default.
	if gen.TopK > 0 {
		topK := float32(gen.TopK)
		cfg.TopK = &topK
	}
	for _, s := range safety {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  harmCategory(s.Category),
			Threshold: blockThreshold(s.Threshold),
		})
	}
	return cfg
}

func harmCategory(c model.HarmCategory) genai.HarmCategory {
	switch c {
	case model.HarmCategoryHarassment:
		return genai.HarmCategoryHarassment
	case model.HarmCategoryHateSpeech:
		return genai.HarmCategoryHateSpeech
	case model.HarmCategorySexuallyExplicit:
		return genai.HarmCategorySexuallyExplicit
	case model.HarmCategoryDangerousContent:
		return genai.HarmCategoryDangerousContent
	}
	return genai.HarmCategory(c)
}

func blockThreshold(t model.BlockThreshold) genai.HarmBlockThreshold {
	switch t {
	case model.BlockNone:
		return genai.HarmBlockThresholdBlockNone
	case model.BlockOnlyHigh:
		return genai.HarmBlockThresholdBlockOnlyHigh
	case model.BlockMediumAndAbove:
		return genai.HarmBlockThresholdBlockMediumAndAbove
	case model.BlockLowAndAbove:
		return genai.HarmBlockThresholdBlockLowAndAbove
	}
	return genai.HarmBlockThreshold(t)
}
