package httpapi

import (
	"time"

	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/recording"
	"github.com/foxseedlab/chumon/internal/repository"
	"github.com/foxseedlab/chumon/internal/session"
	"github.com/foxseedlab/chumon/internal/transcriber"
)

type messageResponse struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

type conversationResponse struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	Messages  []messageResponse `json:"messages"`
}

type recordingResponse struct {
	SessionID          string `json:"session_id,omitempty"`
	Status             string `json:"status"`
	ElapsedSeconds     int    `json:"elapsed_seconds"`
	ElapsedLabel       string `json:"elapsed_label"`
	MaxDurationSeconds int    `json:"max_duration_seconds"`
	RemainingSeconds   int    `json:"remaining_seconds"`
	StopReason         string `json:"stop_reason,omitempty"`
	Finalizing         bool   `json:"finalizing"`
}

type transcriptionResponse struct {
	Outcome string `json:"outcome"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

type inputRequest struct {
	Text string `json:"text"`
}

type inputResponse struct {
	Text string `json:"text"`
}

type permissionRequest struct {
	Granted bool `json:"granted"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	ConversationID int64           `json:"conversation_id"`
	UserMessage    messageResponse `json:"user_message"`
	Reply          messageResponse `json:"reply"`
	Fallback       bool            `json:"fallback"`
}

type sendStateResponse struct {
	ConversationID int64 `json:"conversation_id"`
	Enabled        bool  `json:"enabled"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func toMessageResponse(m conversation.Message) messageResponse {
	return messageResponse{
		Sender:    string(m.Sender),
		Text:      m.Text,
		Icon:      string(m.Icon),
		CreatedAt: m.CreatedAt,
	}
}

func toConversationResponse(s conversation.Snapshot) conversationResponse {
	msgs := make([]messageResponse, 0, len(s.Messages))
	for _, m := range s.Messages {
		msgs = append(msgs, toMessageResponse(m))
	}
	return conversationResponse{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
		Messages:  msgs,
	}
}

func toRecordingResponse(s recording.Snapshot) recordingResponse {
	return recordingResponse{
		SessionID:          s.SessionID,
		Status:             string(s.Status),
		ElapsedSeconds:     s.ElapsedSeconds,
		ElapsedLabel:       s.ElapsedLabel(),
		MaxDurationSeconds: s.MaxDurationSeconds,
		RemainingSeconds:   s.RemainingSeconds(),
		StopReason:         string(s.StopReason),
		Finalizing:         s.Finalizing,
	}
}

func toTranscriptionResponse(r transcriber.Result) transcriptionResponse {
	return transcriptionResponse{
		Outcome: string(r.Outcome),
		Text:    r.Text,
		Message: r.Message,
	}
}

func toSendMessageResponse(out *session.SendOutput) sendMessageResponse {
	return sendMessageResponse{
		ConversationID: out.ConversationID,
		UserMessage:    toMessageResponse(out.UserMessage),
		Reply:          toMessageResponse(out.Reply),
		Fallback:       out.Fallback,
	}
}

func toHistoryResponse(records []repository.MessageRecord) []messageResponse {
	out := make([]messageResponse, 0, len(records))
	for _, r := range records {
		out = append(out, messageResponse{
			Sender:    r.Sender,
			Text:      r.Text,
			Icon:      r.Icon,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}
