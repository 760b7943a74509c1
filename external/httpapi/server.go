package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/foxseedlab/chumon/internal/audio"
	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/recording"
	"github.com/foxseedlab/chumon/internal/repository"
	"github.com/foxseedlab/chumon/internal/session"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxJSONBodyBytes  = 64 << 10
	maxFrameBodyBytes = 1 << 20
)

// Assistant is the command surface the HTTP API drives. *session.Manager
// satisfies it.
type Assistant interface {
	Conversation() (conversation.Snapshot, error)
	RenameConversation(ctx context.Context, name string) (conversation.Snapshot, error)
	DeleteConversation(ctx context.Context) (conversation.Snapshot, error)
	History(ctx context.Context, conversationID int64) ([]repository.MessageRecord, error)

	Input() string
	SetInput(text string)
	SubmitInput(ctx context.Context) (*session.SendOutput, error)
	Send(ctx context.Context, text string) (*session.SendOutput, error)

	SetAudioPermission(granted bool) error
	Recording() recording.Snapshot
	StartRecording(ctx context.Context) (recording.Snapshot, error)
	StopRecording(ctx context.Context) (recording.Snapshot, error)
	CancelRecording() recording.Snapshot
}

type Server struct {
	assistant Assistant
	frames    audio.FrameSink
	hub       *EventHub
	gatherer  prometheus.Gatherer
}

func NewServer(assistant Assistant, frames audio.FrameSink, hub *EventHub, gatherer prometheus.Gatherer) *Server {
	return &Server{assistant: assistant, frames: frames, hub: hub, gatherer: gatherer}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	if s.hub != nil {
		v1.Handle("/events", s.hub).Methods(http.MethodGet)
	}

	v1.HandleFunc("/audio/permission", s.handleSetPermission).Methods(http.MethodPost)
	v1.HandleFunc("/audio/frames", s.handleWriteFrame).Methods(http.MethodPost)

	v1.HandleFunc("/recording", s.handleGetRecording).Methods(http.MethodGet)
	v1.HandleFunc("/recording/start", s.handleStartRecording).Methods(http.MethodPost)
	v1.HandleFunc("/recording/stop", s.handleStopRecording).Methods(http.MethodPost)
	v1.HandleFunc("/recording/cancel", s.handleCancelRecording).Methods(http.MethodPost)

	v1.HandleFunc("/input", s.handleGetInput).Methods(http.MethodGet)
	v1.HandleFunc("/input", s.handleSetInput).Methods(http.MethodPut)
	v1.HandleFunc("/input/submit", s.handleSubmitInput).Methods(http.MethodPost)
	v1.HandleFunc("/messages", s.handleSendMessage).Methods(http.MethodPost)

	v1.HandleFunc("/conversation", s.handleGetConversation).Methods(http.MethodGet)
	v1.HandleFunc("/conversation", s.handleRenameConversation).Methods(http.MethodPatch)
	v1.HandleFunc("/conversation", s.handleDeleteConversation).Methods(http.MethodDelete)
	v1.HandleFunc("/conversations/{id}/messages", s.handleHistory).Methods(http.MethodGet)
	return r
}

func (s *Server) handleSetPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.assistant.SetAudioPermission(req.Granted); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWriteFrame(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: "unsupported_media_type", Message: "Content-Type must be audio/opus or audio/l16"})
		return
	}
	var enc audio.FrameEncoding
	switch mediaType {
	case "audio/opus":
		enc = audio.FrameEncodingOpus
	case "audio/l16":
		enc = audio.FrameEncodingPCM
	default:
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: "unsupported_media_type", Message: "Content-Type must be audio/opus or audio/l16"})
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "frame_too_large", Message: err.Error()})
		return
	}
	if err := s.frames.WriteFrame(enc, payload); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toRecordingResponse(s.assistant.Recording()))
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	snap, err := s.assistant.StartRecording(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(snap))
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	snap, err := s.assistant.StopRecording(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(snap))
}

func (s *Server) handleCancelRecording(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toRecordingResponse(s.assistant.CancelRecording()))
}

func (s *Server) handleGetInput(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, inputResponse{Text: s.assistant.Input()})
}

func (s *Server) handleSetInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.assistant.SetInput(req.Text)
	writeJSON(w, http.StatusOK, inputResponse{Text: s.assistant.Input()})
}

func (s *Server) handleSubmitInput(w http.ResponseWriter, r *http.Request) {
	out, err := s.assistant.SubmitInput(r.Context())
	s.writeSendResult(w, out, err)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := s.assistant.Send(r.Context(), req.Text)
	s.writeSendResult(w, out, err)
}

func (s *Server) writeSendResult(w http.ResponseWriter, out *session.SendOutput, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toSendMessageResponse(out))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.assistant.Conversation()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(snap))
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := s.assistant.RenameConversation(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(snap))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	snap, err := s.assistant.DeleteConversation(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_id", Message: "conversation id must be a positive integer"})
		return
	}
	records, err := s.assistant.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(records))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_json", Message: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		slog.Error("request failed", "error", err)
	}
	msg := err.Error()
	var rce *session.RemoteCallError
	if errors.As(err, &rce) {
		msg = rce.Message
	}
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, recording.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, recording.ErrAlreadyRecording):
		return http.StatusConflict, "already_recording"
	case errors.Is(err, recording.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, recording.ErrCancelled):
		return http.StatusConflict, "recording_cancelled"
	case errors.Is(err, session.ErrSendInProgress):
		return http.StatusConflict, "send_in_progress"
	case errors.Is(err, audio.ErrNoActiveCapture), errors.Is(err, audio.ErrDeviceBusy):
		return http.StatusConflict, "no_active_capture"
	case errors.Is(err, conversation.ErrEmptyName):
		return http.StatusUnprocessableEntity, "empty_name"
	case errors.Is(err, session.ErrRemoteCallFailure):
		return http.StatusBadGateway, "remote_call_failure"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrPermissionUnsupported):
		return http.StatusNotImplemented, "permission_unsupported"
	case errors.Is(err, session.ErrNotOpen):
		return http.StatusServiceUnavailable, "not_open"
	}
	return http.StatusInternalServerError, "internal"
}
