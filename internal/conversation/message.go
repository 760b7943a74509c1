package conversation

import "time"

type Sender string

const (
	SenderUser  Sender = "You"
	SenderModel Sender = "ChatBot"
)

type Icon string

const (
	IconUser  Icon = "UserLogo"
	IconModel Icon = "BotLogo"
)

func (s Sender) Icon() Icon {
	if s == SenderModel {
		return IconModel
	}
	return IconUser
}

func (s Sender) IsModel() bool {
	return s == SenderModel
}

// Message is one turn. It is a value type and is never mutated after
// construction.
type Message struct {
	Sender    Sender
	Text      string
	CreatedAt time.Time
	Icon      Icon
}

func NewMessage(sender Sender, text string, createdAt time.Time) Message {
	return Message{
		Sender:    sender,
		Text:      text,
		CreatedAt: createdAt,
		Icon:      sender.Icon(),
	}
}

func NewUserMessage(text string, createdAt time.Time) Message {
	return NewMessage(SenderUser, text, createdAt)
}

func NewModelMessage(text string, createdAt time.Time) Message {
	return NewMessage(SenderModel, text, createdAt)
}
