package vault

import (
	"time"

	"github.com/memvault/memvault/pkg/llm"
)

// ChatHistory keeps the message log for one chat session, in order.
type ChatHistory struct {
	SessionID string
	CreatedAt time.Time

	messages []llm.Message
}

// NewChatHistory starts an empty history for the given session.
func NewChatHistory(sessionID string) *ChatHistory {
	return &ChatHistory{SessionID: sessionID, CreatedAt: time.Now().UTC()}
}

// AddMessage appends a message with the given role.
func (h *ChatHistory) AddMessage(role, content string) {
	h.messages = append(h.messages, llm.Message{Role: role, Content: content})
}

// AddUserMessage appends a user message.
func (h *ChatHistory) AddUserMessage(content string) {
	h.AddMessage(llm.RoleUser, content)
}

// AddAssistantMessage appends an assistant message.
func (h *ChatHistory) AddAssistantMessage(content string) {
	h.AddMessage(llm.RoleAssistant, content)
}

// Messages returns a copy of the history. A positive limit keeps only the
// most recent messages.
func (h *ChatHistory) Messages(limit int) []llm.Message {
	msgs := h.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]llm.Message(nil), msgs...)
}

// Len returns the number of stored messages.
func (h *ChatHistory) Len() int {
	return len(h.messages)
}

// Clear drops all messages and resets the creation time.
func (h *ChatHistory) Clear() {
	h.messages = nil
	h.CreatedAt = time.Now().UTC()
}
