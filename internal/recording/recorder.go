package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/google/uuid"
)

// EventSink receives state transitions. Calls are made without holding the
// recorder lock.
type EventSink interface {
	RecordingStateChanged(s Snapshot)
	RecordingElapsed(s Snapshot)
	RecordingAutoStopped(s Snapshot, artifact *audio.Artifact, err error)
}

type Config struct {
	MaxDurationSeconds int
	TickInterval       time.Duration
	Format             audio.Format
}

type phase int

const (
	phaseStarting phase = iota
	phaseRecording
	phaseFinalizing
	phaseStopped
	phaseCancelled
)

type activeSession struct {
	id         string
	handle     audio.CaptureHandle
	phase      phase
	startedAt  time.Time
	elapsed    int
	stopReason StopReason
	tickStop   chan struct{}
	tickOnce   sync.Once
}

func (s *activeSession) stopTicking() {
	s.tickOnce.Do(func() {
		if s.tickStop != nil {
			close(s.tickStop)
		}
	})
}

type Recorder struct {
	audio audio.Service
	sink  EventSink
	cfg   Config
	now   func() time.Time

	mu      sync.Mutex
	current *activeSession
}

func NewRecorder(svc audio.Service, sink EventSink, cfg Config) *Recorder {
	if cfg.MaxDurationSeconds <= 0 {
		cfg.MaxDurationSeconds = DefaultMaxDurationSeconds
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.DefaultFormat()
	}
	return &Recorder{
		audio: svc,
		sink:  sink,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.current)
}

func (r *Recorder) snapshotLocked(s *activeSession) Snapshot {
	snap := Snapshot{
		Status:             StatusIdle,
		MaxDurationSeconds: r.cfg.MaxDurationSeconds,
	}
	if s == nil {
		return snap
	}
	snap.SessionID = s.id
	snap.StartedAt = s.startedAt
	snap.ElapsedSeconds = s.elapsed
	snap.StopReason = s.stopReason
	switch s.phase {
	case phaseRecording:
		snap.Status = StatusRecording
	case phaseFinalizing:
		snap.Status = StatusStopped
		snap.Finalizing = true
	case phaseStopped:
		snap.Status = StatusStopped
	case phaseCancelled:
		snap.Status = StatusCancelled
	}
	return snap
}

func (r *Recorder) busyLocked() bool {
	if r.current == nil {
		return false
	}
	switch r.current.phase {
	case phaseStarting, phaseRecording, phaseFinalizing:
		return true
	}
	return false
}

// Start opens a capture and begins the elapsed counter.
func (r *Recorder) Start(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	if r.busyLocked() {
		snap := r.snapshotLocked(r.current)
		r.mu.Unlock()
		return snap, ErrAlreadyRecording
	}
	sess := &activeSession{id: uuid.NewString(), phase: phaseStarting}
	r.current = sess
	r.mu.Unlock()

	granted, err := r.audio.RequestPermission(ctx)
	if err != nil {
		r.abandon(sess)
		return Snapshot{Status: StatusIdle, MaxDurationSeconds: r.cfg.MaxDurationSeconds}, fmt.Errorf("request microphone permission: %w", err)
	}
	if !granted {
		r.abandon(sess)
		return Snapshot{Status: StatusIdle, MaxDurationSeconds: r.cfg.MaxDurationSeconds}, ErrPermissionDenied
	}

	handle, err := r.audio.StartCapture(ctx, r.cfg.Format)
	if err != nil {
		r.abandon(sess)
		return Snapshot{Status: StatusIdle, MaxDurationSeconds: r.cfg.MaxDurationSeconds}, fmt.Errorf("start capture: %w", err)
	}

	r.mu.Lock()
	if sess.phase == phaseCancelled {
		snap := r.snapshotLocked(sess)
		r.mu.Unlock()
		r.audio.AbortCapture(handle)
		return snap, ErrCancelled
	}
	sess.handle = handle
	sess.phase = phaseRecording
	sess.startedAt = r.now()
	sess.tickStop = make(chan struct{})
	snap := r.snapshotLocked(sess)
	r.mu.Unlock()

	slog.Info("recording started", "session_id", sess.id, "max_duration_sec", r.cfg.MaxDurationSeconds)
	go r.runTicker(sess)
	r.sink.RecordingStateChanged(snap)
	return snap, nil
}

func (r *Recorder) abandon(sess *activeSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == sess {
		r.current = nil
	}
}

func (r *Recorder) runTicker(sess *activeSession) {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.tickStop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.current != sess || sess.phase != phaseRecording {
				r.mu.Unlock()
				return
			}
			sess.elapsed++
			snap := r.snapshotLocked(sess)
			reached := sess.elapsed >= r.cfg.MaxDurationSeconds
			r.mu.Unlock()

			r.sink.RecordingElapsed(snap)
			if !reached {
				continue
			}
			slog.Info("recording reached max duration; stopping", "session_id", sess.id, "elapsed_sec", snap.ElapsedSeconds)
			artifact, err := r.stop(context.Background(), sess, StopReasonMaxDuration)
			if errors.Is(err, ErrInvalidState) {
				return
			}
			r.mu.Lock()
			final := r.snapshotLocked(sess)
			r.mu.Unlock()
			r.sink.RecordingAutoStopped(final, artifact, err)
			return
		}
	}
}

// Stop finalizes the artifact. The caller owns the returned artifact.
func (r *Recorder) Stop(ctx context.Context) (*audio.Artifact, error) {
	r.mu.Lock()
	sess := r.current
	r.mu.Unlock()
	if sess == nil {
		return nil, ErrInvalidState
	}
	return r.stop(ctx, sess, StopReasonManual)
}

func (r *Recorder) stop(ctx context.Context, sess *activeSession, reason StopReason) (*audio.Artifact, error) {
	r.mu.Lock()
	if r.current != sess || sess.phase != phaseRecording {
		r.mu.Unlock()
		return nil, ErrInvalidState
	}
	sess.phase = phaseFinalizing
	sess.stopReason = reason
	sess.stopTicking()
	handle := sess.handle
	snap := r.snapshotLocked(sess)
	r.mu.Unlock()
	r.sink.RecordingStateChanged(snap)

	artifact, err := r.audio.StopCapture(ctx, handle)

	r.mu.Lock()
	if sess.phase == phaseCancelled {
		r.mu.Unlock()
		slog.Info("recording cancelled during finalize; artifact discarded", "session_id", sess.id)
		return nil, ErrCancelled
	}
	if err != nil {
		if r.current == sess {
			r.current = nil
		}
		snap = r.snapshotLocked(nil)
		r.mu.Unlock()
		r.sink.RecordingStateChanged(snap)
		return nil, fmt.Errorf("finalize recording: %w", err)
	}
	sess.phase = phaseStopped
	snap = r.snapshotLocked(sess)
	r.mu.Unlock()

	slog.Info("recording stopped", "session_id", sess.id, "reason", string(reason), "elapsed_sec", snap.ElapsedSeconds, "artifact_bytes", len(artifact.Data))
	r.sink.RecordingStateChanged(snap)
	return artifact, nil
}

// Cancel moves the current session to Cancelled from any state. It never
// waits for an in-progress finalize and is safe to call repeatedly.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	sess := r.current
	if sess == nil || sess.phase == phaseCancelled {
		r.mu.Unlock()
		return
	}
	prev := sess.phase
	sess.phase = phaseCancelled
	sess.stopTicking()
	handle := sess.handle
	snap := r.snapshotLocked(sess)
	r.mu.Unlock()

	if prev == phaseRecording {
		r.audio.AbortCapture(handle)
	}
	slog.Info("recording cancelled", "session_id", sess.id)
	r.sink.RecordingStateChanged(snap)
}

// Release forgets a stopped or cancelled session once the caller is done
// with its artifact. A session that was replaced by a newer one is left alone.
func (r *Recorder) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess := r.current
	if sess == nil || sess.id != sessionID {
		return
	}
	if sess.phase == phaseStopped || sess.phase == phaseCancelled {
		r.current = nil
	}
}
