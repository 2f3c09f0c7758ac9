package runner

import (
	"sync"

	"loom/internal/provider"
)

// History is the append-ordered message sequence of one conversation.
// It is the sole durable state of a turn: messages may be cleared
// wholesale between conversations but never spliced mid-sequence.
type History struct {
	mu       sync.RWMutex
	messages []provider.Message
}

// NewHistory creates a history, optionally seeded with a system prompt.
func NewHistory(systemPrompt string) *History {
	h := &History{}
	if systemPrompt != "" {
		h.messages = append(h.messages, provider.Message{
			Role:    provider.RoleSystem,
			Content: systemPrompt,
		})
	}
	return h
}

// Append adds messages at the end.
func (h *History) Append(msgs ...provider.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
}

// Snapshot returns a copy of the sequence.
func (h *History) Snapshot() []provider.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]provider.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the message count.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Clear drops every message except the leading system prompt, if any.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) > 0 && h.messages[0].Role == provider.RoleSystem {
		h.messages = h.messages[:1]
		return
	}
	h.messages = nil
}
