package webhook

import (
	"context"
	"time"
)

const (
	PayloadSchemaVersion     = 1
	EventConversationArchive = "conversation.archived"
)

type ConversationArchivePayload struct {
	SchemaVersion int                  `json:"schema_version"`
	Event         string               `json:"event"`
	Conversation  ArchivedConversation `json:"conversation"`
	Messages      []ArchivedMessage    `json:"messages"`
}

type ArchivedConversation struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	ArchivedAt   time.Time `json:"archived_at"`
	MessageCount int       `json:"message_count"`
}

type ArchivedMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Sender interface {
	SendConversationArchive(ctx context.Context, payload ConversationArchivePayload) error
}
