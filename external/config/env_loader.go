package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/chumon/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string  `env:"ENV" envDefault:"production"`
	LogLevel                   string  `env:"LOG_LEVEL"`
	HTTPAddr                   string  `env:"HTTP_ADDR" envDefault:":8080"`
	ModelBackend               string  `env:"MODEL_BACKEND" envDefault:"gemini"`
	GeminiAPIKey               string  `env:"GEMINI_API_KEY"`
	GeminiModel                string  `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	ModelTemperature           float32 `env:"MODEL_TEMPERATURE" envDefault:"1.0"`
	ModelTopP                  float32 `env:"MODEL_TOP_P" envDefault:"0.95"`
	ModelTopK                  int32   `env:"MODEL_TOP_K" envDefault:"0"`
	ModelMaxOutputTokens       int32   `env:"MODEL_MAX_OUTPUT_TOKENS" envDefault:"8192"`
	SafetyHarassment           string  `env:"SAFETY_HARASSMENT" envDefault:"BLOCK_MEDIUM_AND_ABOVE"`
	SafetyHateSpeech           string  `env:"SAFETY_HATE_SPEECH" envDefault:"BLOCK_MEDIUM_AND_ABOVE"`
	SafetySexuallyExplicit     string  `env:"SAFETY_SEXUALLY_EXPLICIT" envDefault:"BLOCK_NONE"`
	SafetyDangerousContent     string  `env:"SAFETY_DANGEROUS_CONTENT" envDefault:"BLOCK_MEDIUM_AND_ABOVE"`
	TranscribeLanguage         string  `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-US"`
	MaxRecordingDurationSec    int     `env:"MAX_RECORDING_DURATION_SEC" envDefault:"120"`
	ArtifactEncoding           string  `env:"ARTIFACT_ENCODING" envDefault:"wav"`
	ArtifactArchiveDir         string  `env:"ARTIFACT_ARCHIVE_DIR"`
	GoogleCloudProjectID       string  `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string  `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudSpeechLocation  string  `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string  `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	StorageBackend             string  `env:"STORAGE_BACKEND" envDefault:"memory"`
	DatabaseURL                string  `env:"DATABASE_URL"`
	MenuReferencePath          string  `env:"MENU_REFERENCE_PATH"`
	DefaultConversationName    string  `env:"DEFAULT_CONVERSATION_NAME" envDefault:"Conversation One"`
	ConversationWebhookURL     string  `env:"CONVERSATION_WEBHOOK_URL"`
	DiscordToken               string  `env:"DISCORD_TOKEN"`
	DiscordMirrorChannelID     string  `env:"DISCORD_MIRROR_CHANNEL_ID"`
}

// Load reads .env when present, then the process environment.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(".env"); err == nil {
		slog.Debug("loaded .env file")
	}
	return parse()
}

func parse() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("%w: environment variables are invalid or missing: %w", internalconfig.ErrMissingConfiguration, err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		LogLevel:                   raw.LogLevel,
		HTTPAddr:                   raw.HTTPAddr,
		ModelBackend:               raw.ModelBackend,
		GeminiAPIKey:               raw.GeminiAPIKey,
		GeminiModel:                raw.GeminiModel,
		ModelTemperature:           raw.ModelTemperature,
		ModelTopP:                  raw.ModelTopP,
		ModelTopK:                  raw.ModelTopK,
		ModelMaxOutputTokens:       raw.ModelMaxOutputTokens,
		SafetyHarassment:           raw.SafetyHarassment,
		SafetyHateSpeech:           raw.SafetyHateSpeech,
		SafetySexuallyExplicit:     raw.SafetySexuallyExplicit,
		SafetyDangerousContent:     raw.SafetyDangerousContent,
		TranscribeLanguage:         raw.TranscribeLanguage,
		MaxRecordingDurationSec:    raw.MaxRecordingDurationSec,
		ArtifactEncoding:           raw.ArtifactEncoding,
		ArtifactArchiveDir:         raw.ArtifactArchiveDir,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		StorageBackend:             raw.StorageBackend,
		DatabaseURL:                raw.DatabaseURL,
		MenuReferencePath:          raw.MenuReferencePath,
		DefaultConversationName:    raw.DefaultConversationName,
		ConversationWebhookURL:     raw.ConversationWebhookURL,
		DiscordToken:               raw.DiscordToken,
		DiscordMirrorChannelID:     raw.DiscordMirrorChannelID,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
