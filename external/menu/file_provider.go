package menu

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/foxseedlab/chumon/internal/menu"
)

// FileProvider serves pre-extracted menu text. Pages are separated by form
// feeds, as written by text extraction tools. The file is read once.
type FileProvider struct {
	path string

	once sync.Once
	text string
	err  error
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: strings.TrimSpace(path)}
}

func (p *FileProvider) MenuText(_ context.Context) (string, error) {
	p.once.Do(func() {
		p.text, p.err = p.load()
		if p.err == nil {
			slog.Info("menu reference loaded", "path", p.path, "bytes", len(p.text))
		}
	})
	return p.text, p.err
}

func (p *FileProvider) load() (string, error) {
	if p.path == "" {
		return "", menu.ErrUnavailable
	}
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", menu.ErrUnavailable, p.path)
		}
		return "", fmt.Errorf("read menu reference: %w", err)
	}
	return formatPages(filepath.Base(p.path), string(raw)), nil
}

func formatPages(name, raw string) string {
	pages := strings.Split(raw, "\f")
	var b strings.Builder
	fmt.Fprintf(&b, "--- START OF PDF %s ---\n", name)
	n := 0
	for _, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		fmt.Fprintf(&b, "--- PAGE %d ---\n%s\n", n, page)
		n++
	}
	if n == 0 {
		return ""
	}
	return b.String()
}
