package session

import "sync"

// History is the append-only, chronological record of one conversation.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewHistory() *History {
	return &History{turns: make([]Turn, 0)}
}

// AppendExchange commits a user turn and its assistant reply together so
// a reader never observes half an exchange.
func (h *History) AppendExchange(userText, assistantText string) (Turn, Turn) {
	user := NewTurn(RoleUser, userText)
	assistant := NewTurn(RoleAssistant, assistantText)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, user, assistant)
	return user, assistant
}

// Turns returns a copy of the history.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make([]Turn, len(h.turns))
	copy(cp, h.turns)
	return cp
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
