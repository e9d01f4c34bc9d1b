package voiceclient

import (
	"sync"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
	SenderError Sender = "error"
)

// ChatMessage is immutable once appended.
type ChatMessage struct {
	ID       string
	Text     string
	Sender   Sender
	Sequence int
}

// ConversationLog is the append-only ordered record of exchanged messages.
// Sequence numbers are assigned at append time, so the order of the log is
// the order in which the triggering calls completed, not the order they were
// issued.
type ConversationLog struct {
	mu       sync.Mutex
	messages []ChatMessage

	onAppend func(message ChatMessage)
}

func NewConversationLog() *ConversationLog {
	return &ConversationLog{
		onAppend: func(ChatMessage) {},
	}
}

func (l *ConversationLog) SetAppendCallback(callback func(message ChatMessage)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if callback != nil {
		l.onAppend = callback
	} else {
		l.onAppend = func(ChatMessage) {}
	}
}

// Append records a message and delivers it to the append callback. The
// callback runs under the log's lock so delivery order always matches
// sequence order; it must not call back into the log.
func (l *ConversationLog) Append(sender Sender, text string) ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	message := ChatMessage{
		ID:       uuid.NewString(),
		Text:     text,
		Sender:   sender,
		Sequence: len(l.messages) + 1,
	}
	l.messages = append(l.messages, message)
	l.onAppend(message)
	return message
}

// Messages returns a point-in-time copy of the log.
func (l *ConversationLog) Messages() []ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	messages := make([]ChatMessage, len(l.messages))
	copy(messages, l.messages)
	return messages
}

func (l *ConversationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.messages)
}
