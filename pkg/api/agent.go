package api

import (
	"context"

	"taskmate/pkg/llm"
	"taskmate/pkg/session"
)

// ToolInvocation records one tool call made while answering a turn.
type ToolInvocation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Reply is the outcome of one agent turn.
type Reply struct {
	Text      string           `json:"text"`
	ToolCalls []ToolInvocation `json:"tool_calls,omitempty"`
	Usage     *llm.LLMUsage    `json:"usage,omitempty"`
}

// UsedTool reports whether the named tool ran during the turn.
func (r *Reply) UsedTool(name string) bool {
	for _, tc := range r.ToolCalls {
		if tc.Name == name {
			return true
		}
	}
	return false
}

// AgentEngine answers user input, possibly through tools.
type AgentEngine interface {
	// Run computes a reply for input given prior turns. It has no side
	// effects on history.
	Run(ctx context.Context, turns []session.Turn, input string) (*Reply, error)
	// HandleTurn runs the turn and commits the exchange to sess on success.
	HandleTurn(ctx context.Context, sess *session.Session, input string) (*Reply, error)
}
