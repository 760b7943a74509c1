package model

import (
	"context"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Block is one role-tagged unit of text submitted to the model.
type Block struct {
	Role Role
	Text string
}

type GenerationConfig struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     1.0,
		TopP:            0.95,
		TopK:            0,
		MaxOutputTokens: 8192,
	}
}

type HarmCategory string

const (
	HarmCategoryHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

type BlockThreshold string

const (
	BlockNone           BlockThreshold = "BLOCK_NONE"
	BlockOnlyHigh       BlockThreshold = "BLOCK_ONLY_HIGH"
	BlockMediumAndAbove BlockThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	BlockLowAndAbove    BlockThreshold = "BLOCK_LOW_AND_ABOVE"
)

func ParseBlockThreshold(v string) (BlockThreshold, error) {
	t := BlockThreshold(strings.ToUpper(strings.TrimSpace(v)))
	switch t {
	case BlockNone, BlockOnlyHigh, BlockMediumAndAbove, BlockLowAndAbove:
		return t, nil
	}
	return "", fmt.Errorf("unknown block threshold %q", v)
}

type SafetySetting struct {
	Category  HarmCategory
	Threshold BlockThreshold
}

func DefaultSafetySettings() []SafetySetting {
	return []SafetySetting{
		{Category: HarmCategoryHarassment, Threshold: BlockMediumAndAbove},
		{Category: HarmCategoryHateSpeech, Threshold: BlockMediumAndAbove},
		{Category: HarmCategorySexuallyExplicit, Threshold: BlockNone},
		{Category: HarmCategoryDangerousContent, Threshold: BlockMediumAndAbove},
	}
}

// Request carries the full context. NewText is the last block's text and is
// repeated for adapters that submit it separately from the history.
type Request struct {
	Blocks     []Block
	NewText    string
	Generation GenerationConfig
	Safety     []SafetySetting
}

// History returns every block except the trailing new user turn.
func (r Request) History() []Block {
	n := len(r.Blocks)
	if n > 0 && r.Blocks[n-1].Role == RoleUser && r.Blocks[n-1].Text == r.NewText {
		return r.Blocks[:n-1]
	}
	return r.Blocks
}

type Response struct {
	Text string
}

type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
