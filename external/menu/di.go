package menu

import (
	"github.com/foxseedlab/chumon/internal/config"
	"github.com/foxseedlab/chumon/internal/menu"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (menu.Provider, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewFileProvider(cfg.MenuReferencePath), nil
	})
}
