package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable entry in a session history.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn creates a turn with a time-ordered id.
func NewTurn(role Role, text string) Turn {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Turn{
		ID:        id.String(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}
