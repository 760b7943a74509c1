package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foxseedlab/chumon/internal/webhook"
)

func samplePayload() webhook.ConversationArchivePayload {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return webhook.ConversationArchivePayload{
		SchemaVersion: webhook.PayloadSchemaVersion,
		Event:         webhook.EventConversationArchive,
		Conversation: webhook.ArchivedConversation{
			ID:           7,
			Name:         "Table 4",
			CreatedAt:    at,
			ArchivedAt:   at.Add(time.Minute),
			MessageCount: 1,
		},
		Messages: []webhook.ArchivedMessage{{Sender: "You", Text: "one smoothie", CreatedAt: at}},
	}
}

func TestSendConversationArchive_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendConversationArchive(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendConversationArchive_Success(t *testing.T) {
	var got webhook.ConversationArchivePayload
	var gotEvent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		gotEvent = r.Header.Get("X-Chumon-Event")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendConversationArchive(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if gotEvent != webhook.EventConversationArchive {
		t.Fatalf("unexpected event header: %s", gotEvent)
	}
	if got.Conversation.ID != 7 || got.Conversation.Name != "Table 4" || len(got.Messages) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Messages[0].Text != "one smoothie" {
		t.Fatalf("unexpected message: %+v", got.Messages[0])
	}
}

func TestSendConversationArchive_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendConversationArchive(context.Background(), samplePayload()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
