package session

import (
	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/foxseedlab/chumon/internal/config"
	"github.com/foxseedlab/chumon/internal/menu"
	"github.com/foxseedlab/chumon/internal/metrics"
	"github.com/foxseedlab/chumon/internal/model"
	"github.com/foxseedlab/chumon/internal/renderer"
	"github.com/foxseedlab/chumon/internal/repository"
	"github.com/foxseedlab/chumon/internal/transcriber"
	"github.com/foxseedlab/chumon/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewManager(cfg, Dependencies{
			Audio:    do.MustInvoke[audio.Service](i),
			Engine:   do.MustInvoke[transcriber.Engine](i),
			Model:    do.MustInvoke[model.Client](i),
			Menu:     do.MustInvoke[menu.Provider](i),
			Repo:     do.MustInvoke[repository.Repository](i),
			Webhook:  do.MustInvoke[webhook.Sender](i),
			Renderer: do.MustInvoke[renderer.Renderer](i),
			Metrics:  do.MustInvoke[*metrics.Metrics](i),
		}), nil
	})
}
