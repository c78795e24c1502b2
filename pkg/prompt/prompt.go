// Package prompt assembles the message list sent to the model for one turn.
package prompt

import (
	"taskmate/pkg/llm"
	"taskmate/pkg/session"
)

// DefaultSystemPrompt is the assistant persona and tool policy.
const DefaultSystemPrompt = `You are a general-purpose AI assistant AND a task manager.

GENERAL RULES:
- You are fully allowed to answer general knowledge questions
  (history, science, explanations, definitions, facts, etc.).
- If the question is NOT about tasks, answer it normally in plain text.
- NEVER refuse general knowledge questions.

TASK MANAGEMENT RULES:
- Use add_task ONLY when the user clearly wants to create or add a task.
- Use show_tasks ONLY when the user asks to see, list, or show tasks.

TASK DISPLAY RULE:
- When showing tasks, ALWAYS display them as bullet points.
- Each task must appear on its own line starting with "- ".
- Do NOT add explanations before or after the task list unless asked.

IMPORTANT:
- Do not say "my purpose is only task management".
- Be helpful, clear, and concise.`

// Composer builds the fixed system prompt, the windowed history and the
// current input, in that order.
type Composer struct {
	systemPrompt string
	window       session.WindowPolicy
}

// NewComposer returns a composer. An empty systemPrompt selects
// DefaultSystemPrompt and a nil window keeps the whole history.
func NewComposer(systemPrompt string, window session.WindowPolicy) *Composer {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if window == nil {
		window = session.Unbounded{}
	}
	return &Composer{systemPrompt: systemPrompt, window: window}
}

// SystemPrompt returns the instructions placed first in every request.
func (c *Composer) SystemPrompt() string {
	return c.systemPrompt
}

// Compose is deterministic: equal turns and input give equal messages.
func (c *Composer) Compose(turns []session.Turn, input string) []llm.Message {
	window := c.window.Apply(turns)

	msgs := make([]llm.Message, 0, len(window)+2)
	msgs = append(msgs, llm.NewSystemMessage(c.systemPrompt))
	for _, t := range window {
		switch t.Role {
		case session.RoleUser:
			msgs = append(msgs, llm.NewUserMessage(t.Text))
		case session.RoleAssistant:
			msgs = append(msgs, llm.NewAssistantMessage(t.Text))
		}
	}
	msgs = append(msgs, llm.NewUserMessage(input))
	return msgs
}
