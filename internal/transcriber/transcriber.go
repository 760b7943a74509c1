package transcriber

import (
	"context"

	"github.com/foxseedlab/chumon/internal/audio"
)

// ResultReceiver gets hypotheses from an engine. Non-final results are
// advisory.
type ResultReceiver interface {
	OnResult(segmentIndex int, text string, isFinal bool)
	OnError(err error)
}

// Engine recognizes one artifact. Recognize blocks until the engine has
// nothing more to report.
type Engine interface {
	Recognize(ctx context.Context, artifact *audio.Artifact, locale string, receiver ResultReceiver) error
}
