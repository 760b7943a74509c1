package discord

import (
	"github.com/foxseedlab/chumon/internal/config"
	"github.com/samber/do/v2"
)

// RegisterDI provides a nil mirror when no bot token is configured.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*ChannelMirror, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.DiscordToken == "" {
			return nil, nil
		}
		return NewChannelMirror(c.DiscordToken, c.DiscordMirrorChannelID)
	})
}
