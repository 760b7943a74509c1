package config

import (
	"errors"
	"testing"

	internalconfig "github.com/foxseedlab/chumon/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_CLOUD_PROJECT_ID", "project-id")
	t.Setenv("GOOGLE_CLOUD_CREDENTIALS_JSON", `{"type":"service_account"}`)
	t.Setenv("GEMINI_API_KEY", "key")
}

func TestParse_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ModelTemperature != 1.0 || cfg.ModelTopP != 0.95 || cfg.ModelTopK != 0 || cfg.ModelMaxOutputTokens != 8192 {
		t.Fatalf("unexpected generation defaults: %+v", cfg.GenerationConfig())
	}
	if cfg.MaxRecordingDurationSec != 120 {
		t.Fatalf("expected 120 second cap, got %d", cfg.MaxRecordingDurationSec)
	}
	if cfg.DefaultConversationName != "Conversation One" {
		t.Fatalf("unexpected default conversation name %q", cfg.DefaultConversationName)
	}
	if cfg.StorageBackend != internalconfig.StorageBackendMemory {
		t.Fatalf("expected memory storage by default, got %q", cfg.StorageBackend)
	}
	if cfg.TranscribeLanguage != "en-US" {
		t.Fatalf("expected en-US, got %q", cfg.TranscribeLanguage)
	}
}

func TestParse_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT_ID", "")
	t.Setenv("GOOGLE_CLOUD_CREDENTIALS_JSON", "")
	t.Setenv("GEMINI_API_KEY", "key")

	_, err := parse()
	if !errors.Is(err, internalconfig.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
}

func TestParse_MissingAPIKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GEMINI_API_KEY", "")

	_, err := parse()
	if !errors.Is(err, internalconfig.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
}

func TestParse_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MODEL_BACKEND", "mock")
	t.Setenv("MAX_RECORDING_DURATION_SEC", "30")
	t.Setenv("ARTIFACT_ENCODING", "flac")

	cfg, err := parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ModelBackend != internalconfig.ModelBackendMock {
		t.Fatalf("expected mock backend, got %q", cfg.ModelBackend)
	}
	if cfg.MaxRecordingDurationSec != 30 {
		t.Fatalf("expected 30, got %d", cfg.MaxRecordingDurationSec)
	}
	if cfg.ArtifactEncoding != internalconfig.ArtifactEncodingFLAC {
		t.Fatalf("expected flac, got %q", cfg.ArtifactEncoding)
	}
}
