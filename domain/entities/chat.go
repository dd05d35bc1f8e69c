package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the role of a chat message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatMessage is one turn in a conversation with the assistant.
type ChatMessage struct {
	ID         string      `json:"id"`
	Role       MessageRole `json:"role"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
	IsThinking bool        `json:"isThinking,omitempty"`
}

// NewChatMessage creates a message with a fresh id and the current time.
func NewChatMessage(role MessageRole, text string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Validate validates a message received from a caller
func (m ChatMessage) Validate() error {
	if m.Role != MessageRoleUser && m.Role != MessageRoleAssistant {
		return errors.New("role must be user or assistant")
	}
	return nil
}

// Conversation is the ordered log of chat turns. Only the text of the
// in-flight assistant turn is ever mutated.
type Conversation struct {
	Messages []ChatMessage `json:"messages"`
}

// NewConversation creates a conversation seeded with prior turns
func NewConversation(history []ChatMessage) *Conversation {
	messages := make([]ChatMessage, len(history))
	copy(messages, history)
	return &Conversation{Messages: messages}
}

// Append adds a message at the end of the log.
func (c *Conversation) Append(message ChatMessage) {
	c.Messages = append(c.Messages, message)
}

// AppendText appends a streamed delta to the message with the given id and
// clears its thinking flag. It reports whether the message was found.
func (c *Conversation) AppendText(id, delta string) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages[i].Text += delta
			c.Messages[i].IsThinking = false
			return true
		}
	}
	return false
}

// Remove drops the message with the given id.
func (c *Conversation) Remove(id string) {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return
		}
	}
}

// Get returns a copy of the message with the given id.
func (c *Conversation) Get(id string) (ChatMessage, bool) {
	for _, m := range c.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return ChatMessage{}, false
}
