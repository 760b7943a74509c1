package llm

import (
	"context"

	"github.com/foxseedlab/chumon/internal/config"
	"github.com/foxseedlab/chumon/internal/model"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (model.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.ModelBackend == config.ModelBackendMock {
			return NewMockClient(), nil
		}
		return NewGeminiClient(context.Background(), GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
	})
}
