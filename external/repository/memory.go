package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/foxseedlab/chumon/internal/repository"
)

// MemoryRepository keeps conversations in process memory. Nothing survives a
// restart.
type MemoryRepository struct {
	mu            sync.RWMutex
	nextID        int64
	conversations map[int64]repository.ConversationRecord
	messages      map[int64][]repository.MessageRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		conversations: make(map[int64]repository.ConversationRecord),
		messages:      make(map[int64][]repository.MessageRecord),
	}
}

func (r *MemoryRepository) CreateConversation(_ context.Context, input repository.CreateConversationInput) (*repository.ConversationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec := repository.ConversationRecord{ID: r.nextID, Name: input.Name, CreatedAt: input.CreatedAt}
	r.conversations[rec.ID] = rec
	return &rec, nil
}

func (r *MemoryRepository) RenameConversation(_ context.Context, input repository.RenameConversationInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conversations[input.ConversationID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.Name = input.Name
	r.conversations[rec.ID] = rec
	return nil
}

func (r *MemoryRepository) ArchiveConversation(_ context.Context, input repository.ArchiveConversationInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.conversations[input.ConversationID]
	if !ok || rec.ArchivedAt != nil {
		return repository.ErrNotFound
	}
	at := input.ArchivedAt
	rec.ArchivedAt = &at
	r.conversations[rec.ID] = rec
	return nil
}

func (r *MemoryRepository) GetConversation(_ context.Context, id int64) (*repository.ConversationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.conversations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryRepository) AppendMessage(_ context.Context, input repository.AppendMessageInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[input.ConversationID]; !ok {
		return repository.ErrNotFound
	}
	list := r.messages[input.ConversationID]
	if input.Position != len(list) {
		return fmt.Errorf("message position %d out of order, expected %d", input.Position, len(list))
	}
	r.messages[input.ConversationID] = append(list, repository.MessageRecord{
		ConversationID: input.ConversationID,
		Position:       input.Position,
		Sender:         input.Sender,
		Text:           input.Text,
		Icon:           input.Icon,
		CreatedAt:      input.CreatedAt,
	})
	return nil
}

func (r *MemoryRepository) ListMessages(_ context.Context, conversationID int64) ([]repository.MessageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.conversations[conversationID]; !ok {
		return nil, repository.ErrNotFound
	}
	list := r.messages[conversationID]
	out := make([]repository.MessageRecord, len(list))
	copy(out, list)
	return out, nil
}
