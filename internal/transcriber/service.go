package transcriber

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/foxseedlab/chumon/internal/audio"
)

type Service struct {
	engine Engine
	locale string
}

func NewService(engine Engine, locale string) *Service {
	return &Service{engine: engine, locale: locale}
}

func (s *Service) Locale() string {
	return s.locale
}

// Transcribe runs recognition in the background. The returned channel yields
// exactly one Result and is then closed. onPartial may be nil.
func (s *Service) Transcribe(ctx context.Context, artifact *audio.Artifact, onPartial func(text string)) <-chan Result {
	out := make(chan Result, 1)
	c := &completion{out: out, onPartial: onPartial}

	if artifact == nil {
		c.finish(Failure(&Error{Message: "audio artifact is missing"}))
		return out
	}
	if len(artifact.PCM) == 0 {
		c.finish(NoSpeech())
		return out
	}

	go func() {
		err := s.engine.Recognize(ctx, artifact, s.locale, c)
		if err != nil {
			c.OnError(err)
			return
		}
		c.finish(NoSpeech())
	}()
	return out
}

type completion struct {
	once      sync.Once
	done      atomic.Bool
	out       chan Result
	onPartial func(text string)
}

func (c *completion) finish(r Result) {
	c.once.Do(func() {
		c.done.Store(true)
		c.out <- r
		close(c.out)
	})
}

func (c *completion) OnResult(segmentIndex int, text string, isFinal bool) {
	if !isFinal {
		if c.onPartial != nil && !c.done.Load() && strings.TrimSpace(text) != "" {
			c.onPartial(text)
		}
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.finish(NoSpeech())
		return
	}
	c.finish(Success(text))
}

func (c *completion) OnError(err error) {
	if errors.Is(err, context.Canceled) {
		slog.Info("transcription cancelled", "error", err)
	} else {
		slog.Error("transcription engine error", "error", err)
	}
	c.finish(Failure(err))
}
