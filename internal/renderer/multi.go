package renderer

import (
	"github.com/foxseedlab/chumon/internal/conversation"
	"github.com/foxseedlab/chumon/internal/recording"
	"github.com/foxseedlab/chumon/internal/transcriber"
)

type multi []Renderer

// Multi fans every event out to rs in order.
func Multi(rs ...Renderer) Renderer {
	out := make(multi, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) ConversationChanged(s conversation.Snapshot) {
	for _, r := range m {
		r.ConversationChanged(s)
	}
}

func (m multi) RecordingChanged(s recording.Snapshot) {
	for _, r := range m {
		r.RecordingChanged(s)
	}
}

func (m multi) TranscriptionPartial(text string) {
	for _, r := range m {
		r.TranscriptionPartial(text)
	}
}

func (m multi) TranscriptionFinished(res transcriber.Result) {
	for _, r := range m {
		r.TranscriptionFinished(res)
	}
}

func (m multi) InputChanged(text string) {
	for _, r := range m {
		r.InputChanged(text)
	}
}

func (m multi) SendStateChanged(conversationID int64, enabled bool) {
	for _, r := range m {
		r.SendStateChanged(conversationID, enabled)
	}
}

func (m multi) ErrorRaised(e ErrorEvent) {
	for _, r := range m {
		r.ErrorRaised(e)
	}
}
