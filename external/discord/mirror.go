package discord

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/renderer"
)

// Discord rejects message content longer than this.
const maxMessageLength = 2000

// ChannelMirror posts every new conversation turn to a staff text channel.
// It only uses the REST API, so no gateway connection is opened.
type ChannelMirror struct {
	renderer.Nop

	session   *discordgo.Session
	channelID string

	mu     sync.Mutex
	convID int64
	posted int
}

func NewChannelMirror(token, channelID string) (*ChannelMirror, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return newChannelMirror(s, channelID), nil
}

func newChannelMirror(s *discordgo.Session, channelID string) *ChannelMirror {
	return &ChannelMirror{session: s, channelID: channelID, convID: -1}
}

func (m *ChannelMirror) ConversationChanged(s conversation.Snapshot) {
	m.mu.Lock()
	var pending []string
	if s.ID != m.convID {
		m.convID = s.ID
		m.posted = 0
		pending = append(pending, fmt.Sprintf("__Conversation #%d: %s__", s.ID, s.Name))
	}
	if len(s.Messages) < m.posted {
		m.posted = 0
	}
	for _, msg := range s.Messages[m.posted:] {
		pending = append(pending, formatTurn(msg))
	}
	m.posted = len(s.Messages)
	m.mu.Unlock()

	for _, content := range pending {
		if _, err := m.session.ChannelMessageSend(m.channelID, content); err != nil {
			slog.Warn("failed to mirror conversation turn to discord", "channel_id", m.channelID, "conversation_id", s.ID, "error", err)
			return
		}
	}
}

func (m *ChannelMirror) ErrorRaised(e renderer.ErrorEvent) {
	if e.Kind != renderer.ErrorKindRemoteCallFailure {
		return
	}
	if _, err := m.session.ChannelMessageSend(m.channelID, truncate(":warning: "+e.Message)); err != nil {
		slog.Warn("failed to mirror error to discord", "channel_id", m.channelID, "error", err)
	}
}

func formatTurn(msg conversation.Message) string {
	return truncate(fmt.Sprintf("**%s**: %s", msg.Sender, strings.TrimSpace(msg.Text)))
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageLength {
		return s
	}
	return string(r[:maxMessageLength-1]) + "…"
}
