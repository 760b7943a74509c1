package httpapi

import (
	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/foxseedlab/chumon/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*EventHub, error) {
		return NewEventHub(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		return NewServer(
			do.MustInvoke[*session.Manager](i),
			do.MustInvoke[audio.FrameSink](i),
			do.MustInvoke[*EventHub](i),
			do.MustInvoke[*prometheus.Registry](i),
		), nil
	})
}
