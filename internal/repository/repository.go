package repository

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("conversation not found")

type CreateConversationInput struct {
	Name      string
	CreatedAt time.Time
}

type RenameConversationInput struct {
	ConversationID int64
	Name           string
}

type ArchiveConversationInput struct {
	ConversationID int64
	ArchivedAt     time.Time
}

type AppendMessageInput struct {
	ConversationID int64
	Position       int
	Sender         string
	Text           string
	Icon           string
	CreatedAt      time.Time
}

type ConversationRepository interface {
	CreateConversation(ctx context.Context, input CreateConversationInput) (*ConversationRecord, error)
	RenameConversation(ctx context.Context, input RenameConversationInput) error
	ArchiveConversation(ctx context.Context, input ArchiveConversationInput) error
	GetConversation(ctx context.Context, id int64) (*ConversationRecord, error)
}

type MessageRepository interface {
	AppendMessage(ctx context.Context, input AppendMessageInput) error
	ListMessages(ctx context.Context, conversationID int64) ([]MessageRecord, error)
}

type Repository interface {
	ConversationRepository
	MessageRepository
}
