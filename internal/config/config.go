package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/foxseedlab/chumon/internal/model"
)

var ErrMissingConfiguration = errors.New("missing configuration")

const (
	ModelBackendGemini = "gemini"
	ModelBackendMock   = "mock"

	StorageBackendMemory    = "memory"
	StorageBackendPostgres  = "postgres"
	StorageBackendFirestore = "firestore"

	ArtifactEncodingWAV  = "wav"
	ArtifactEncodingFLAC = "flac"
)

type Config struct {
	Env                        string
	LogLevel                   string
	HTTPAddr                   string
	ModelBackend               string
	GeminiAPIKey               string
	GeminiModel                string
	ModelTemperature           float32
	ModelTopP                  float32
	ModelTopK                  int32
	ModelMaxOutputTokens       int32
	SafetyHarassment           string
	SafetyHateSpeech           string
	SafetySexuallyExplicit     string
	SafetyDangerousContent     string
	TranscribeLanguage         string
	MaxRecordingDurationSec    int
	ArtifactEncoding           string
	ArtifactArchiveDir         string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	StorageBackend             string
	DatabaseURL                string
	MenuReferencePath          string
	DefaultConversationName    string
	ConversationWebhookURL     string
	DiscordToken               string
	DiscordMirrorChannelID     string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if strings.TrimSpace(req.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrMissingConfiguration, req.name)
		}
	}
	switch c.ModelBackend {
	case ModelBackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required when MODEL_BACKEND=gemini", ErrMissingConfiguration)
		}
	case ModelBackendMock:
	default:
		return fmt.Errorf("MODEL_BACKEND must be %q or %q, got %q", ModelBackendGemini, ModelBackendMock, c.ModelBackend)
	}
	switch c.StorageBackend {
	case StorageBackendMemory, StorageBackendFirestore:
	case StorageBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required when STORAGE_BACKEND=postgres", ErrMissingConfiguration)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of memory, postgres, firestore, got %q", c.StorageBackend)
	}
	if c.MaxRecordingDurationSec <= 0 {
		return fmt.Errorf("MAX_RECORDING_DURATION_SEC must be positive, got %d", c.MaxRecordingDurationSec)
	}
	if c.ArtifactEncoding != ArtifactEncodingWAV && c.ArtifactEncoding != ArtifactEncodingFLAC {
		return fmt.Errorf("ARTIFACT_ENCODING must be %q or %q, got %q", ArtifactEncodingWAV, ArtifactEncodingFLAC, c.ArtifactEncoding)
	}
	if c.ModelMaxOutputTokens <= 0 {
		return fmt.Errorf("MODEL_MAX_OUTPUT_TOKENS must be positive, got %d", c.ModelMaxOutputTokens)
	}
	if (c.DiscordToken == "") != (c.DiscordMirrorChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_MIRROR_CHANNEL_ID must be set together")
	}
	if _, err := c.SafetySettings(); err != nil {
		return err
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "HTTP_ADDR", value: c.HTTPAddr},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) GenerationConfig() model.GenerationConfig {
	return model.GenerationConfig{
		Temperature:     c.ModelTemperature,
		TopP:            c.ModelTopP,
		TopK:            c.ModelTopK,
		MaxOutputTokens: c.ModelMaxOutputTokens,
	}
}

func (c *Config) SafetySettings() ([]model.SafetySetting, error) {
	fields := []struct {
		name     string
		value    string
		category model.HarmCategory
	}{
		{"SAFETY_HARASSMENT", c.SafetyHarassment, model.HarmCategoryHarassment},
		{"SAFETY_HATE_SPEECH", c.SafetyHateSpeech, model.HarmCategoryHateSpeech},
		{"SAFETY_SEXUALLY_EXPLICIT", c.SafetySexuallyExplicit, model.HarmCategorySexuallyExplicit},
		{"SAFETY_DANGEROUS_CONTENT", c.SafetyDangerousContent, model.HarmCategoryDangerousContent},
	}
	out := make([]model.SafetySetting, 0, len(fields))
	for _, f := range fields {
		threshold, err := model.ParseBlockThreshold(f.value)
		if err != nil {
			return nil, fmt.Errorf("%s is invalid: %w", f.name, err)
		}
		out = append(out, model.SafetySetting{Category: f.category, Threshold: threshold})
	}
	return out, nil
}
