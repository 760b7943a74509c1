package repository

import "time"

type ConversationRecord struct {
	ID         int64
	Name       string
	CreatedAt  time.Time
	ArchivedAt *time.Time
}

type MessageRecord struct {
	ConversationID int64
	Position       int
	Sender         string
	Text           string
	Icon           string
	CreatedAt      time.Time
}
