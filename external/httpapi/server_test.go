package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/recording"
	"github.com/foxseedlab/chumon/internal/repository"
	"github.com/foxseedlab/chumon/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

type mockAssistant struct {
	mu         sync.Mutex
	input      string
	granted    *bool
	snap       conversation.Snapshot
	sendErr    error
	sendOut    *session.SendOutput
	startErr   error
	historyErr error
	sent       []string
}

func (m *mockAssistant) Conversation() (conversation.Snapshot, error) { return m.snap, nil }

func (m *mockAssistant) RenameConversation(_ context.Context, name string) (conversation.Snapshot, error) {
	if strings.TrimSpace(name) == "" {
		return m.snap, conversation.ErrEmptyName
	}
	m.snap.Name = strings.TrimSpace(name)
	return m.snap, nil
}

func (m *mockAssistant) DeleteConversation(context.Context) (conversation.Snapshot, error) {
	m.snap = conversation.Snapshot{ID: m.snap.ID + 1, Name: "Conversation One"}
	return m.snap, nil
}

func (m *mockAssistant) History(_ context.Context, id int64) ([]repository.MessageRecord, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return []repository.MessageRecord{{ConversationID: id, Position: 0, Sender: "You", Text: "hi", Icon: "UserLogo"}}, nil
}

func (m *mockAssistant) Input() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

func (m *mockAssistant) SetInput(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = text
}

func (m *mockAssistant) SubmitInput(ctx context.Context) (*session.SendOutput, error) {
	text := m.Input()
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	m.SetInput("")
	return m.Send(ctx, text)
}

func (m *mockAssistant) Send(_ context.Context, text string) (*session.SendOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if m.sendOut != nil {
		return m.sendOut, nil
	}
	now := time.Now()
	return &session.SendOutput{
		ConversationID: m.snap.ID,
		UserMessage:    conversation.NewUserMessage(text, now),
		Reply:          conversation.NewModelMessage("Sure.", now),
	}, nil
}

func (m *mockAssistant) SetAudioPermission(granted bool) error {
	m.granted = &granted
	return nil
}

func (m *mockAssistant) Recording() recording.Snapshot {
	return recording.Snapshot{Status: recording.StatusIdle, MaxDurationSeconds: 120}
}

func (m *mockAssistant) StartRecording(context.Context) (recording.Snapshot, error) {
	if m.startErr != nil {
		return recording.Snapshot{Status: recording.StatusIdle}, m.startErr
	}
	return recording.Snapshot{SessionID: "s1", Status: recording.StatusRecording, MaxDurationSeconds: 120}, nil
}

func (m *mockAssistant) StopRecording(context.Context) (recording.Snapshot, error) {
	return recording.Snapshot{}, recording.ErrInvalidState
}

func (m *mockAssistant) CancelRecording() recording.Snapshot {
	return recording.Snapshot{Status: recording.StatusIdle}
}

type mockFrameSink struct {
	encoding audio.FrameEncoding
	payload  []byte
	err      error
}

func (m *mockFrameSink) WriteFrame(enc audio.FrameEncoding, payload []byte) error {
	m.encoding = enc
	m.payload = payload
	return m.err
}

func newTestServer(t *testing.T) (*httptest.Server, *mockAssistant, *mockFrameSink) {
	t.Helper()
	a := &mockAssistant{snap: conversation.Snapshot{ID: 1, Name: "Conversation One"}}
	f := &mockFrameSink{}
	srv := httptest.NewServer(NewServer(a, f, NewEventHub(), prometheus.NewRegistry()).Handler())
	t.Cleanup(srv.Close)
	return srv, a, f
}

func doRequest(t *testing.T, method, url, contentType, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := doRequest(t, http.MethodGet, srv.URL+"/healthz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := doRequest(t, http.MethodGet, srv.URL+"/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestInput_PutThenGet(t *testing.T) {
	srv, a, _ := newTestServer(t)
	resp := doRequest(t, http.MethodPut, srv.URL+"/v1/input", "application/json", `{"text":"two lattes"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if a.Input() != "two lattes" {
		t.Fatalf("unexpected input %q", a.Input())
	}
	got := decodeBody[inputResponse](t, doRequest(t, http.MethodGet, srv.URL+"/v1/input", "", ""))
	if got.Text != "two lattes" {
		t.Fatalf("unexpected input response %+v", got)
	}
}

func TestSubmitInput_BlankReturnsNoContent(t *testing.T) {
	srv, a, _ := newTestServer(t)
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/input/submit", "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if len(a.sent) != 0 {
		t.Fatal("expected no send")
	}
}

func TestSendMessage_ReturnsBothTurns(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/messages", "application/json", `{"text":"one smoothie"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decodeBody[sendMessageResponse](t, resp)
	if got.UserMessage.Sender != "You" || got.UserMessage.Text != "one smoothie" || got.Reply.Sender != "ChatBot" {
		t.Fatalf("unexpected response %+v", got)
	}
}

func TestSendMessage_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"in progress", session.ErrSendInProgress, http.StatusConflict, "send_in_progress"},
		{"remote failure", &session.RemoteCallError{Message: "model unavailable", Err: errors.New("503")}, http.StatusBadGateway, "remote_call_failure"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, a, _ := newTestServer(t)
			a.sendErr = tc.err
			resp := doRequest(t, http.MethodPost, srv.URL+"/v1/messages", "application/json", `{"text":"hi"}`)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			got := decodeBody[errorResponse](t, resp)
			if got.Error != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, got.Error)
			}
		})
	}
}

func TestRemoteFailureUsesFriendlyMessage(t *testing.T) {
	srv, a, _ := newTestServer(t)
	a.sendErr = &session.RemoteCallError{Message: "model unavailable", Err: errors.New("503 upstream")}
	got := decodeBody[errorResponse](t, doRequest(t, http.MethodPost, srv.URL+"/v1/messages", "application/json", `{"text":"hi"}`))
	if got.Message != "model unavailable" {
		t.Fatalf("unexpected message %q", got.Message)
	}
}

func TestRecording_StartAndStopErrors(t *testing.T) {
	srv, a, _ := newTestServer(t)
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/recording/start", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decodeBody[recordingResponse](t, resp)
	if got.Status != "recording" || got.ElapsedLabel != "00:00" || got.RemainingSeconds != 120 {
		t.Fatalf("unexpected recording response %+v", got)
	}

	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/recording/stop", "", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for stop without recording, got %d", resp.StatusCode)
	}

	a.startErr = recording.ErrPermissionDenied
	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/recording/start", "", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestAudioPermission(t *testing.T) {
	srv, a, _ := newTestServer(t)
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/audio/permission", "application/json", `{"granted":true}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if a.granted == nil || !*a.granted {
		t.Fatal("expected permission to be granted")
	}
}

func TestAudioFrames(t *testing.T) {
	srv, _, f := newTestServer(t)
	resp := doRequest(t, http.MethodPost, srv.URL+"/v1/audio/frames", "audio/l16; rate=12000", "\x01\x00\x02\x00")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if f.encoding != audio.FrameEncodingPCM || len(f.payload) != 4 {
		t.Fatalf("unexpected frame %s %v", f.encoding, f.payload)
	}

	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/audio/frames", "audio/opus", "x")
	if resp.StatusCode != http.StatusAccepted || f.encoding != audio.FrameEncodingOpus {
		t.Fatalf("expected opus frame to be accepted, got %d %s", resp.StatusCode, f.encoding)
	}

	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/audio/frames", "text/plain", "x")
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}

	f.err = audio.ErrNoActiveCapture
	resp = doRequest(t, http.MethodPost, srv.URL+"/v1/audio/frames", "audio/l16", "\x01\x00")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestConversation_RenameAndDelete(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := doRequest(t, http.MethodPatch, srv.URL+"/v1/conversation", "application/json", `{"name":" Table 4 "}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decodeBody[conversationResponse](t, resp); got.Name != "Table 4" {
		t.Fatalf("unexpected name %q", got.Name)
	}

	resp = doRequest(t, http.MethodPatch, srv.URL+"/v1/conversation", "application/json", `{"name":"  "}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/v1/conversation", "", "")
	if got := decodeBody[conversationResponse](t, resp); got.ID != 2 || len(got.Messages) != 0 {
		t.Fatalf("unexpected conversation after delete %+v", got)
	}
}

func TestHistory(t *testing.T) {
	srv, a, _ := newTestServer(t)
	got := decodeBody[[]messageResponse](t, doRequest(t, http.MethodGet, srv.URL+"/v1/conversations/1/messages", "", ""))
	if len(got) != 1 || got[0].Sender != "You" {
		t.Fatalf("unexpected history %+v", got)
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/v1/conversations/abc/messages", "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	a.historyErr = repository.ErrNotFound
	resp = doRequest(t, http.MethodGet, srv.URL+"/v1/conversations/9/messages", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestInvalidJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := doRequest(t, http.MethodPut, srv.URL+"/v1/input", "application/json", `{`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
