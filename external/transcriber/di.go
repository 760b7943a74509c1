package transcriber

import (
	"github.com/foxseedlab/chumon/internal/config"
	"github.com/foxseedlab/chumon/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*CloudSpeechEngine, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewCloudSpeechEngine(CloudSpeechConfig{
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Location:        c.GoogleCloudSpeechLocation,
			Model:           c.GoogleCloudSpeechModel,
		}), nil
	})
	do.Provide(injector, func(i do.Injector) (transcriber.Engine, error) {
		return do.MustInvoke[*CloudSpeechEngine](i), nil
	})
}
