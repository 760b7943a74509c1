package menu

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Placeholder stands in for the menu when no reference text is available.
const Placeholder = "Nothing"

var ErrUnavailable = errors.New("menu reference is unavailable")

type Provider interface {
	MenuText(ctx context.Context) (string, error)
}

// Resolve returns the provider's text, or Placeholder when it fails or has
// nothing to offer.
func Resolve(ctx context.Context, p Provider) string {
	if p == nil {
		return Placeholder
	}
	text, err := p.MenuText(ctx)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			slog.Warn("failed to load menu reference; using placeholder", "error", err)
		}
		return Placeholder
	}
	if strings.TrimSpace(text) == "" {
		return Placeholder
	}
	return text
}
