package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/foxseedlab/chumon/internal/config"
	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/model"
	"github.com/foxseedlab/chumon/internal/recording"
	"github.com/foxseedlab/chumon/internal/renderer"
	"github.com/foxseedlab/chumon/internal/repository"
	"github.com/foxseedlab/chumon/internal/transcriber"
	"github.com/foxseedlab/chumon/internal/webhook"
)

type mockAudioService struct {
	mu      sync.Mutex
	granted bool
	started int
	aborted int
}

func (m *mockAudioService) SetPermission(granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.granted = granted
}

func (m *mockAudioService) RequestPermission(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.granted, nil
}

func (m *mockAudioService) StartCapture(_ context.Context, _ audio.Format) (audio.CaptureHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	return audio.CaptureHandle("capture-1"), nil
}

func (m *mockAudioService) StopCapture(_ context.Context, _ audio.CaptureHandle) (*audio.Artifact, error) {
	return &audio.Artifact{ID: "artifact-1", Format: audio.DefaultFormat(), PCM: []byte{1, 0, 2, 0}}, nil
}

func (m *mockAudioService) AbortCapture(_ audio.CaptureHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted++
}

type mockEngine struct {
	recognize func(ctx context.Context, rcv transcriber.ResultReceiver) error
}

func (m *mockEngine) Recognize(ctx context.Context, _ *audio.Artifact, _ string, rcv transcriber.ResultReceiver) error {
	if m.recognize == nil {
		return nil
	}
	return m.recognize(ctx, rcv)
}

type mockModelClient struct {
	mu       sync.Mutex
	requests []model.Request
	reply    string
	err      error
	gate     chan struct{}
	entered  chan struct{}
}

func (m *mockModelClient) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	gate, entered, reply, err := m.gate, m.entered, m.reply, m.err
	m.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &model.Response{Text: reply}, nil
}

func (m *mockModelClient) calls() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

type mockRepository struct {
	mu            sync.Mutex
	nextID        int64
	conversations map[int64]*repository.ConversationRecord
	messages      map[int64][]repository.MessageRecord
	createErr     error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		conversations: make(map[int64]*repository.ConversationRecord),
		messages:      make(map[int64][]repository.MessageRecord),
	}
}

func (m *mockRepository) CreateConversation(_ context.Context, input repository.CreateConversationInput) (*repository.ConversationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	rec := &repository.ConversationRecord{ID: m.nextID, Name: input.Name, CreatedAt: input.CreatedAt}
	m.conversations[rec.ID] = rec
	return rec, nil
}

func (m *mockRepository) RenameConversation(_ context.Context, input repository.RenameConversationInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.conversations[input.ConversationID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Name = input.Name
	return nil
}

func (m *mockRepository) ArchiveConversation(_ context.Context, input repository.ArchiveConversationInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.conversations[input.ConversationID]
	if !ok {
		return repository.ErrNotFound
	}
	at := input.ArchivedAt
	rec.ArchivedAt = &at
	return nil
}

func (m *mockRepository) GetConversation(_ context.Context, id int64) (*repository.ConversationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRepository) AppendMessage(_ context.Context, input repository.AppendMessageInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[input.ConversationID] = append(m.messages[input.ConversationID], repository.MessageRecord{
		ConversationID: input.ConversationID,
		Position:       input.Position,
		Sender:         input.Sender,
		Text:           input.Text,
		Icon:           input.Icon,
		CreatedAt:      input.CreatedAt,
	})
	return nil
}

func (m *mockRepository) ListMessages(_ context.Context, conversationID int64) ([]repository.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.MessageRecord, len(m.messages[conversationID]))
	copy(out, m.messages[conversationID])
	return out, nil
}

type mockWebhookSender struct {
	mu       sync.Mutex
	payloads []webhook.ConversationArchivePayload
}

func (m *mockWebhookSender) SendConversationArchive(_ context.Context, payload webhook.ConversationArchivePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return nil
}

func (m *mockWebhookSender) sent() []webhook.ConversationArchivePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]webhook.ConversationArchivePayload, len(m.payloads))
	copy(out, m.payloads)
	return out
}

type recordingRenderer struct {
	renderer.Nop
	mu            sync.Mutex
	conversations []conversation.Snapshot
	inputs        []string
	errors        []renderer.ErrorEvent
	finished      []transcriber.Result
	sendStates    []bool
	recordings    []recording.Snapshot
	onRecording   func(recording.Snapshot)
}

func (r *recordingRenderer) RecordingChanged(s recording.Snapshot) {
	r.mu.Lock()
	r.recordings = append(r.recordings, s)
	hook := r.onRecording
	r.mu.Unlock()
	if hook != nil {
		hook(s)
	}
}

func (r *recordingRenderer) setOnRecording(fn func(recording.Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRecording = fn
}

func (r *recordingRenderer) sawStopReason(reason recording.StopReason) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.recordings {
		if s.StopReason == reason {
			return true
		}
	}
	return false
}

func (r *recordingRenderer) ConversationChanged(s conversation.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations = append(r.conversations, s)
}

func (r *recordingRenderer) InputChanged(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, text)
}

func (r *recordingRenderer) ErrorRaised(e renderer.ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, e)
}

func (r *recordingRenderer) TranscriptionFinished(res transcriber.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res)
}

func (r *recordingRenderer) SendStateChanged(_ int64, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendStates = append(r.sendStates, enabled)
}

func (r *recordingRenderer) errorKinds() []renderer.ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]renderer.ErrorKind, 0, len(r.errors))
	for _, e := range r.errors {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recordingRenderer) finishedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.finished)
}

func (r *recordingRenderer) lastSendState() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sendStates) == 0 {
		return false, false
	}
	return r.sendStates[len(r.sendStates)-1], true
}

type testHarness struct {
	manager  *Manager
	audio    *mockAudioService
	engine   *mockEngine
	model    *mockModelClient
	repo     *mockRepository
	webhook  *mockWebhookSender
	renderer *recordingRenderer
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	return newTestHarnessWith(t, 120, time.Hour)
}

func newTestHarnessWith(t *testing.T, maxDurationSec int, tick time.Duration) *testHarness {
	t.Helper()
	h := &testHarness{
		audio:    &mockAudioService{granted: true},
		engine:   &mockEngine{},
		model:    &mockModelClient{reply: "ok"},
		repo:     newMockRepository(),
		webhook:  &mockWebhookSender{},
		renderer: &recordingRenderer{},
	}
	cfg := &config.Config{
		TranscribeLanguage:      "en-US",
		MaxRecordingDurationSec: maxDurationSec,
		DefaultConversationName: "Conversation One",
		ModelTemperature:        1.0,
		ModelTopP:               0.95,
		ModelMaxOutputTokens:    8192,
		SafetyHarassment:        "BLOCK_MEDIUM_AND_ABOVE",
		SafetyHateSpeech:        "BLOCK_MEDIUM_AND_ABOVE",
		SafetySexuallyExplicit:  "BLOCK_NONE",
		SafetyDangerousContent:  "BLOCK_MEDIUM_AND_ABOVE",
	}
	h.manager = NewManager(cfg, Dependencies{
		Audio:        h.audio,
		Engine:       h.engine,
		Model:        h.model,
		Repo:         h.repo,
		Webhook:      h.webhook,
		Renderer:     h.renderer,
		TickInterval: tick,
	})
	h.manager.Open(context.Background())
	return h
}

func hasKind(kinds []renderer.ErrorKind, want renderer.ErrorKind) bool {
	for _, k := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

var errNetwork = errors.New("dial tcp: connection refused")

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}
