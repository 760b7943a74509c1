package renderer

import (
	"log/slog"
	"sync"

	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/recording"
	"github.com/foxseedlab/chumon/internal/transcriber"
)

const DefaultQueueSize = 256

// Dispatcher queues events and delivers them to the target in order on a
// single goroutine. When the queue is full the event is dropped.
type Dispatcher struct {
	target Renderer
	queue  chan func()
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(target Renderer, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		target: target,
		queue:  make(chan func(), queueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for fn := range d.queue {
		fn()
	}
}

func (d *Dispatcher) enqueue(event string, fn func()) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- fn:
	default:
		slog.Warn("renderer queue full; dropping event", "event", event)
	}
}

// Close drains queued events and stops the delivery goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) ConversationChanged(s conversation.Snapshot) {
	d.enqueue("conversation_changed", func() { d.target.ConversationChanged(s) })
}

func (d *Dispatcher) RecordingChanged(s recording.Snapshot) {
	d.enqueue("recording_changed", func() { d.target.RecordingChanged(s) })
}

func (d *Dispatcher) TranscriptionPartial(text string) {
	d.enqueue("transcription_partial", func() { d.target.TranscriptionPartial(text) })
}

func (d *Dispatcher) TranscriptionFinished(r transcriber.Result) {
	d.enqueue("transcription_finished", func() { d.target.TranscriptionFinished(r) })
}

func (d *Dispatcher) InputChanged(text string) {
	d.enqueue("input_changed", func() { d.target.InputChanged(text) })
}

func (d *Dispatcher) SendStateChanged(conversationID int64, enabled bool) {
	d.enqueue("send_state_changed", func() { d.target.SendStateChanged(conversationID, enabled) })
}

func (d *Dispatcher) ErrorRaised(e ErrorEvent) {
	d.enqueue("error_raised", func() { d.target.ErrorRaised(e) })
}
