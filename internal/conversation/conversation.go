package conversation

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrEmptyName = errors.New("conversation name must not be blank")

// Conversation is an append-only log of turns. Only the name can change after
// construction.
type Conversation struct {
	id        int64
	createdAt time.Time

	mu       sync.RWMutex
	name     string
	messages []Message
}

type Snapshot struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	Messages  []Message
}

func New(id int64, name string, createdAt time.Time) *Conversation {
	return &Conversation{
		id:        id,
		name:      name,
		createdAt: createdAt,
	}
}

func (c *Conversation) ID() int64 {
	return c.id
}

func (c *Conversation) CreatedAt() time.Time {
	return c.createdAt
}

func (c *Conversation) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Append adds m at the end of the log and returns the new length.
func (c *Conversation) Append(m Message) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
	return len(c.messages)
}

func (c *Conversation) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	return nil
}

func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return Snapshot{
		ID:        c.id,
		Name:      c.name,
		CreatedAt: c.createdAt,
		Messages:  msgs,
	}
}

// Holder owns the conversation currently shown to the user. Deleting a
// conversation replaces the aggregate; in-flight work keeps its own reference
// to the previous one.
type Holder struct {
	mu      sync.RWMutex
	current *Conversation
}

func NewHolder(initial *Conversation) *Holder {
	return &Holder{current: initial}
}

func (h *Holder) Current() *Conversation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *Holder) Replace(next *Conversation) *Conversation {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.current
	h.current = next
	return prev
}
