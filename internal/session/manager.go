package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/foxseedlab/chumon/internal/config"
	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/menu"
	"github.com/foxseedlab/chumon/internal/metrics"
	"github.com/foxseedlab/chumon/internal/model"
	"github.com/foxseedlab/chumon/internal/recording"
	"github.com/foxseedlab/chumon/internal/renderer"
	"github.com/foxseedlab/chumon/internal/repository"
	"github.com/foxseedlab/chumon/internal/transcriber"
	"github.com/foxseedlab/chumon/internal/webhook"
)

const archiveTimeout = 30 * time.Second

var (
	ErrNotOpen               = errors.New("session is not open")
	ErrPermissionUnsupported = errors.New("audio service does not accept permission updates")
)

var sessionErrorKinds = map[error]renderer.ErrorKind{
	ErrSendInProgress:    renderer.ErrorKindSendInProgress,
	ErrRemoteCallFailure: renderer.ErrorKindRemoteCallFailure,
}

type Dependencies struct {
	Audio    audio.Service
	Engine   transcriber.Engine
	Model    model.Client
	Menu     menu.Provider
	Repo     repository.Repository
	Webhook  webhook.Sender
	Renderer renderer.Renderer
	Metrics  *metrics.Metrics
	// TickInterval overrides the one-second recording counter tick.
	TickInterval time.Duration
}

// Manager is the session boundary. It owns the current conversation, the
// text input buffer, the recorder and the transcription service, and turns
// every recovered error into a renderer event.
type Manager struct {
	cfg          *config.Config
	audio        audio.Service
	repo         repository.Repository
	webhook      webhook.Sender
	renderer     renderer.Renderer
	metrics      *metrics.Metrics
	recorder     *recording.Recorder
	transcriber  *transcriber.Service
	orchestrator *Orchestrator
	now          func() time.Time

	holder *conversation.Holder

	mu             sync.Mutex
	input          string
	lastID         int64
	transcriptions map[string]*transcriptionJob
	cancelled      map[string]struct{}
	archives       sync.WaitGroup
}

type transcriptionJob struct {
	cancel  context.CancelFunc
	dropped bool
}

func NewManager(cfg *config.Config, deps Dependencies) *Manager {
	r := deps.Renderer
	if r == nil {
		r = renderer.Nop{}
	}
	m := &Manager{
		cfg:            cfg,
		audio:          deps.Audio,
		repo:           deps.Repo,
		webhook:        deps.Webhook,
		renderer:       r,
		metrics:        deps.Metrics,
		transcriber:    transcriber.NewService(deps.Engine, cfg.TranscribeLanguage),
		now:            time.Now,
		holder:         conversation.NewHolder(nil),
		transcriptions: make(map[string]*transcriptionJob),
		cancelled:      make(map[string]struct{}),
	}
	m.recorder = recording.NewRecorder(deps.Audio, m, recording.Config{
		MaxDurationSeconds: cfg.MaxRecordingDurationSec,
		TickInterval:       deps.TickInterval,
		Format:             audio.DefaultFormat(),
	})
	safety, err := cfg.SafetySettings()
	if err != nil {
		slog.Warn("invalid safety settings; using defaults", "error", err)
		safety = nil
	}
	m.orchestrator = NewOrchestrator(deps.Model, deps.Menu, OrchestratorConfig{
		Generation: cfg.GenerationConfig(),
		Safety:     safety,
	}, deps.Metrics, m)
	return m
}

// Open starts the first conversation. Calling it again is a no-op.
func (m *Manager) Open(ctx context.Context) conversation.Snapshot {
	if conv := m.holder.Current(); conv != nil {
		return conv.Snapshot()
	}
	conv := m.newConversation(ctx)
	m.holder.Replace(conv)
	snap := conv.Snapshot()
	slog.Info("conversation opened", "conversation_id", snap.ID, "name", snap.Name)

	m.renderer.ConversationChanged(snap)
	m.renderer.RecordingChanged(m.recorder.Snapshot())
	m.renderer.InputChanged(m.Input())
	m.renderer.SendStateChanged(snap.ID, true)
	return snap
}

func (m *Manager) newConversation(ctx context.Context) *conversation.Conversation {
	now := m.now()
	name := m.cfg.DefaultConversationName
	if strings.TrimSpace(name) == "" {
		name = "Conversation One"
	}

	m.mu.Lock()
	id := m.lastID + 1
	m.mu.Unlock()

	if m.repo != nil {
		rec, err := m.repo.CreateConversation(ctx, repository.CreateConversationInput{Name: name, CreatedAt: now})
		switch {
		case err != nil:
			slog.Error("failed to persist conversation; continuing in memory", "error", err, "conversation_id", id)
		case rec.ID < id:
			slog.Warn("repository returned an id already used locally; keeping local id", "repository_id", rec.ID, "conversation_id", id)
		default:
			id = rec.ID
		}
	}

	m.mu.Lock()
	if id <= m.lastID {
		id = m.lastID + 1
	}
	m.lastID = id
	m.mu.Unlock()

	m.metrics.ConversationStarted()
	return conversation.New(id, name, now)
}

func (m *Manager) current() (*conversation.Conversation, error) {
	conv := m.holder.Current()
	if conv == nil {
		return nil, ErrNotOpen
	}
	return conv, nil
}

func (m *Manager) Conversation() (conversation.Snapshot, error) {
	conv, err := m.current()
	if err != nil {
		return conversation.Snapshot{}, err
	}
	return conv.Snapshot(), nil
}

func (m *Manager) RenameConversation(ctx context.Context, name string) (conversation.Snapshot, error) {
	conv, err := m.current()
	if err != nil {
		return conversation.Snapshot{}, err
	}
	if err := conv.Rename(name); err != nil {
		return conv.Snapshot(), err
	}
	snap := conv.Snapshot()
	if m.repo != nil {
		if err := m.repo.RenameConversation(ctx, repository.RenameConversationInput{ConversationID: snap.ID, Name: snap.Name}); err != nil {
			slog.Error("failed to persist conversation rename", "error", err, "conversation_id", snap.ID)
		}
	}
	slog.Info("conversation renamed", "conversation_id", snap.ID, "name", snap.Name)
	m.renderer.ConversationChanged(snap)
	return snap, nil
}

// DeleteConversation replaces the current conversation with a fresh one.
// The previous aggregate is archived in the background; in-flight sends keep
// appending to it.
func (m *Manager) DeleteConversation(ctx context.Context) (conversation.Snapshot, error) {
	prev, err := m.current()
	if err != nil {
		return conversation.Snapshot{}, err
	}
	next := m.newConversation(ctx)
	m.holder.Replace(next)
	snap := next.Snapshot()
	slog.Info("conversation replaced", "previous_conversation_id", prev.ID(), "conversation_id", snap.ID)

	m.renderer.ConversationChanged(snap)
	m.renderer.SendStateChanged(snap.ID, !m.orchestrator.InFlight(snap.ID))

	m.archives.Add(1)
	go func() {
		defer m.archives.Done()
		m.archive(prev.Snapshot())
	}()
	return snap, nil
}

func (m *Manager) archive(snap conversation.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	archivedAt := m.now()
	if m.repo != nil {
		if err := m.repo.ArchiveConversation(ctx, repository.ArchiveConversationInput{ConversationID: snap.ID, ArchivedAt: archivedAt}); err != nil {
			slog.Error("failed to archive conversation", "error", err, "conversation_id", snap.ID)
		}
	}
	if m.webhook == nil {
		return
	}
	if err := m.webhook.SendConversationArchive(ctx, archivePayload(snap, archivedAt)); err != nil {
		slog.Error("failed to send conversation archive webhook", "error", err, "conversation_id", snap.ID)
	}
}

func archivePayload(snap conversation.Snapshot, archivedAt time.Time) webhook.ConversationArchivePayload {
	msgs := make([]webhook.ArchivedMessage, 0, len(snap.Messages))
	for _, msg := range snap.Messages {
		msgs = append(msgs, webhook.ArchivedMessage{
			Sender:    string(msg.Sender),
			Text:      msg.Text,
			CreatedAt: msg.CreatedAt,
		})
	}
	return webhook.ConversationArchivePayload{
		SchemaVersion: webhook.PayloadSchemaVersion,
		Event:         webhook.EventConversationArchive,
		Conversation: webhook.ArchivedConversation{
			ID:           snap.ID,
			Name:         snap.Name,
			CreatedAt:    snap.CreatedAt,
			ArchivedAt:   archivedAt,
			MessageCount: len(snap.Messages),
		},
		Messages: msgs,
	}
}

// WaitArchives blocks until background archive work has finished.
func (m *Manager) WaitArchives() {
	m.archives.Wait()
}

func (m *Manager) History(ctx context.Context, conversationID int64) ([]repository.MessageRecord, error) {
	if m.repo == nil {
		return nil, repository.ErrNotFound
	}
	return m.repo.ListMessages(ctx, conversationID)
}

func (m *Manager) Input() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

func (m *Manager) SetInput(text string) {
	m.mu.Lock()
	m.input = text
	m.mu.Unlock()
	m.renderer.InputChanged(text)
}

func (m *Manager) SetAudioPermission(granted bool) error {
	ps, ok := m.audio.(audio.PermissionSetter)
	if !ok {
		return ErrPermissionUnsupported
	}
	ps.SetPermission(granted)
	slog.Info("microphone permission updated", "granted", granted)
	return nil
}

func (m *Manager) Recording() recording.Snapshot {
	return m.recorder.Snapshot()
}

func (m *Manager) StartRecording(ctx context.Context) (recording.Snapshot, error) {
	snap, err := m.recorder.Start(ctx)
	if err != nil {
		slog.Warn("recording start rejected", "error", err)
		if !errors.Is(err, recording.ErrCancelled) {
			m.report(err)
		}
		return snap, err
	}
	return snap, nil
}

// StopRecording finalizes the artifact and starts transcription in the
// background. The result arrives through the renderer.
func (m *Manager) StopRecording(ctx context.Context) (recording.Snapshot, error) {
	snap := m.recorder.Snapshot()
	artifact, err := m.recorder.Stop(ctx)
	if err != nil {
		m.forgetCancelled(snap.SessionID)
		if !errors.Is(err, recording.ErrCancelled) {
			m.report(err)
		}
		return m.recorder.Snapshot(), err
	}
	m.beginTranscription(snap.SessionID, artifact)
	return m.recorder.Snapshot(), nil
}

// CancelRecording discards the current session from any state. Repeated
// calls are harmless.
func (m *Manager) CancelRecording() recording.Snapshot {
	m.recorder.Cancel()
	snap := m.recorder.Snapshot()
	if snap.Status == recording.StatusCancelled {
		m.recorder.Release(snap.SessionID)
		m.renderer.RecordingChanged(m.recorder.Snapshot())
	}
	return snap
}

func (m *Manager) beginTranscription(sessionID string, artifact *audio.Artifact) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &transcriptionJob{cancel: cancel}

	m.mu.Lock()
	m.transcriptions[sessionID] = job
	_, cancelled := m.cancelled[sessionID]
	delete(m.cancelled, sessionID)
	m.mu.Unlock()

	if cancelled {
		m.dropTranscription(sessionID)
	}

	slog.Info("transcription started", "session_id", sessionID, "locale", m.transcriber.Locale(), "pcm_bytes", len(artifact.PCM))
	results := m.transcriber.Transcribe(ctx, artifact, func(text string) {
		if !m.isDropped(sessionID) {
			m.renderer.TranscriptionPartial(text)
		}
	})
	go func() {
		defer cancel()
		m.finishTranscription(sessionID, <-results)
	}()
}

// cancelTranscription drops the job of a cancelled session. When stopping
// had already begun but no job is registered yet, the session is remembered
// so beginTranscription drops it on arrival.
func (m *Manager) cancelTranscription(sessionID string, stopping bool) {
	m.mu.Lock()
	_, registered := m.transcriptions[sessionID]
	if !registered && stopping {
		m.cancelled[sessionID] = struct{}{}
	}
	m.mu.Unlock()
	if registered {
		m.dropTranscription(sessionID)
	}
}

func (m *Manager) forgetCancelled(sessionID string) {
	m.mu.Lock()
	delete(m.cancelled, sessionID)
	m.mu.Unlock()
}

func (m *Manager) dropTranscription(sessionID string) {
	m.mu.Lock()
	job, ok := m.transcriptions[sessionID]
	if ok {
		job.dropped = true
	}
	m.mu.Unlock()
	if ok {
		job.cancel()
		slog.Info("transcription discarded for cancelled session", "session_id", sessionID)
	}
}

func (m *Manager) isDropped(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.transcriptions[sessionID]
	return ok && job.dropped
}

func (m *Manager) finishTranscription(sessionID string, res transcriber.Result) {
	m.mu.Lock()
	job := m.transcriptions[sessionID]
	delete(m.transcriptions, sessionID)
	m.mu.Unlock()

	if job != nil && job.dropped {
		m.recorder.Release(sessionID)
		return
	}
	m.metrics.ObserveTranscription(string(res.Outcome))
	slog.Info("transcription finished", "session_id", sessionID, "outcome", string(res.Outcome))

	m.recorder.Release(sessionID)
	m.renderer.TranscriptionFinished(res)
	switch res.Outcome {
	case transcriber.OutcomeSuccess:
		m.SetInput(res.Text)
	default:
		m.renderer.ErrorRaised(renderer.ErrorEvent{
			Kind:    renderer.KindOf(res.AsError(), sessionErrorKinds),
			Message: res.Message,
		})
	}
	m.renderer.RecordingChanged(m.recorder.Snapshot())
}

// Send submits text as a user turn on the current conversation.
func (m *Manager) Send(ctx context.Context, text string) (*SendOutput, error) {
	conv, err := m.current()
	if err != nil {
		return nil, err
	}
	out, err := m.orchestrator.Send(ctx, conv, text)
	if err != nil {
		m.report(err)
		return nil, err
	}
	return out, nil
}

// SubmitInput sends the input buffer and clears it. The buffer is kept when
// another send is still in flight.
func (m *Manager) SubmitInput(ctx context.Context) (*SendOutput, error) {
	conv, err := m.current()
	if err != nil {
		return nil, err
	}
	text := m.Input()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if m.orchestrator.InFlight(conv.ID()) {
		m.report(ErrSendInProgress)
		return nil, ErrSendInProgress
	}
	m.SetInput("")
	out, err := m.orchestrator.Send(ctx, conv, text)
	if err != nil {
		if errors.Is(err, ErrSendInProgress) {
			m.SetInput(text)
		}
		m.report(err)
		return nil, err
	}
	return out, nil
}

func (m *Manager) report(err error) {
	msg := err.Error()
	var rce *RemoteCallError
	if errors.As(err, &rce) {
		msg = rce.Message
	}
	m.renderer.ErrorRaised(renderer.ErrorEvent{
		Kind:    renderer.KindOf(err, sessionErrorKinds),
		Message: msg,
	})
}

// MessageAppended writes the turn through to the repository and redraws when
// the conversation is still the current one.
func (m *Manager) MessageAppended(conv *conversation.Conversation, position int, msg conversation.Message) {
	if m.repo != nil {
		if err := m.repo.AppendMessage(context.Background(), repository.AppendMessageInput{
			ConversationID: conv.ID(),
			Position:       position,
			Sender:         string(msg.Sender),
			Text:           msg.Text,
			Icon:           string(msg.Icon),
			CreatedAt:      msg.CreatedAt,
		}); err != nil {
			slog.Error("failed to persist message", "error", err, "conversation_id", conv.ID(), "position", position)
		}
	}
	if m.holder.Current() == conv {
		m.renderer.ConversationChanged(conv.Snapshot())
	}
}

func (m *Manager) SendStateChanged(conversationID int64, enabled bool) {
	if cur := m.holder.Current(); cur != nil && cur.ID() == conversationID {
		m.renderer.SendStateChanged(conversationID, enabled)
	}
}

func (m *Manager) RecordingStateChanged(s recording.Snapshot) {
	switch {
	case s.Status == recording.StatusCancelled:
		m.metrics.ObserveRecording("cancelled")
		m.cancelTranscription(s.SessionID, s.StopReason != recording.StopReasonNone)
	case s.Status == recording.StatusStopped && !s.Finalizing:
		m.metrics.ObserveRecording(string(s.StopReason))
	}
	m.renderer.RecordingChanged(s)
}

func (m *Manager) RecordingElapsed(s recording.Snapshot) {
	m.renderer.RecordingChanged(s)
}

func (m *Manager) RecordingAutoStopped(s recording.Snapshot, artifact *audio.Artifact, err error) {
	if err != nil {
		m.forgetCancelled(s.SessionID)
		if !errors.Is(err, recording.ErrCancelled) {
			slog.Error("auto-stop failed to finalize recording", "error", err, "session_id", s.SessionID)
			m.report(fmt.Errorf("auto-stop: %w", err))
		}
		return
	}
	m.beginTranscription(s.SessionID, artifact)
}
