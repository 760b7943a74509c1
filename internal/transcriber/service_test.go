package transcriber

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/chumon/internal/audio"
)

type hypothesis struct {
	text    string
	isFinal bool
}

type mockEngine struct {
	results   []hypothesis
	streamErr error
	returnErr error
	gotLocale string
}

func (m *mockEngine) Recognize(_ context.Context, _ *audio.Artifact, locale string, receiver ResultReceiver) error {
	m.gotLocale = locale
	for i, h := range m.results {
		receiver.OnResult(i, h.text, h.isFinal)
	}
	if m.streamErr != nil {
		receiver.OnError(m.streamErr)
	}
	return m.returnErr
}

func testArtifact() *audio.Artifact {
	return &audio.Artifact{ID: "a-1", Format: audio.DefaultFormat(), Encoding: audio.EncodingWAV, PCM: make([]byte, 2400)}
}

func receiveResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without a result")
		}
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcription result")
	}
	return Result{}
}

func assertClosed(t *testing.T, ch <-chan Result) {
	t.Helper()
	select {
	case r, ok := <-ch:
		if ok {
			t.Fatalf("expected exactly one result, got another: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not closed after the terminal result")
	}
}

func TestTranscribe_Success(t *testing.T) {
	engine := &mockEngine{results: []hypothesis{{"I'd like", false}, {" I'd like a smoothie ", true}}}
	svc := NewService(engine, "en-US")

	var mu sync.Mutex
	var partials []string
	ch := svc.Transcribe(context.Background(), testArtifact(), func(text string) {
		mu.Lock()
		defer mu.Unlock()
		partials = append(partials, text)
	})

	r := receiveResult(t, ch)
	if r.Outcome != OutcomeSuccess || r.Text != "I'd like a smoothie" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.AsError() != nil {
		t.Fatalf("success must map to nil error, got %v", r.AsError())
	}
	assertClosed(t, ch)
	if engine.gotLocale != "en-US" {
		t.Fatalf("unexpected locale: %q", engine.gotLocale)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(partials) != 1 || partials[0] != "I'd like" {
		t.Fatalf("unexpected partials: %v", partials)
	}
}

func TestTranscribe_WhitespaceFinalIsNoSpeech(t *testing.T) {
	svc := NewService(&mockEngine{results: []hypothesis{{"   ", true}}}, "en-US")

	r := receiveResult(t, svc.Transcribe(context.Background(), testArtifact(), nil))
	if r.Outcome != OutcomeNoSpeech {
		t.Fatalf("expected no speech, got %+v", r)
	}
	if !errors.Is(r.AsError(), ErrNoSpeechDetected) {
		t.Fatalf("expected ErrNoSpeechDetected, got %v", r.AsError())
	}
}

func TestTranscribe_SilentArtifactWithoutFinalIsNoSpeech(t *testing.T) {
	svc := NewService(&mockEngine{}, "en-US")

	r := receiveResult(t, svc.Transcribe(context.Background(), testArtifact(), nil))
	if r.Outcome != OutcomeNoSpeech {
		t.Fatalf("expected no speech, got %+v", r)
	}
}

func TestTranscribe_EngineErrorIsFailure(t *testing.T) {
	svc := NewService(&mockEngine{returnErr: errors.New("unsupported locale")}, "xx-XX")

	r := receiveResult(t, svc.Transcribe(context.Background(), testArtifact(), nil))
	if r.Outcome != OutcomeFailure {
		t.Fatalf("expected failure, got %+v", r)
	}
	if r.Message != "unsupported locale" {
		t.Fatalf("unexpected message: %q", r.Message)
	}
	if !errors.Is(r.AsError(), ErrTranscriptionFailure) {
		t.Fatalf("expected ErrTranscriptionFailure, got %v", r.AsError())
	}
}

func TestTranscribe_OnlyFirstTerminalResultIsDelivered(t *testing.T) {
	engine := &mockEngine{
		results:   []hypothesis{{"first", true}, {"second", true}, {"late partial", false}},
		streamErr: errors.New("stream reset"),
		returnErr: errors.New("stream reset"),
	}
	svc := NewService(engine, "en-US")
	partialCalls := 0
	ch := svc.Transcribe(context.Background(), testArtifact(), func(string) { partialCalls++ })

	r := receiveResult(t, ch)
	if r.Outcome != OutcomeSuccess || r.Text != "first" {
		t.Fatalf("unexpected result: %+v", r)
	}
	assertClosed(t, ch)
	if partialCalls != 0 {
		t.Fatalf("partials after completion must be ignored, got %d", partialCalls)
	}
}

func TestTranscribe_EmptyArtifactIsNoSpeech(t *testing.T) {
	engine := &mockEngine{results: []hypothesis{{"should not run", true}}}
	svc := NewService(engine, "en-US")

	r := receiveResult(t, svc.Transcribe(context.Background(), &audio.Artifact{}, nil))
	if r.Outcome != OutcomeNoSpeech {
		t.Fatalf("expected no speech, got %+v", r)
	}
	if !errors.Is(r.AsError(), ErrNoSpeechDetected) {
		t.Fatalf("expected ErrNoSpeechDetected, got %v", r.AsError())
	}
	if engine.gotLocale != "" {
		t.Fatal("engine must not be called for an empty artifact")
	}
}

func TestTranscribe_MissingArtifactFails(t *testing.T) {
	svc := NewService(&mockEngine{}, "en-US")

	r := receiveResult(t, svc.Transcribe(context.Background(), nil, nil))
	if r.Outcome != OutcomeFailure {
		t.Fatalf("expected failure, got %+v", r)
	}
}
