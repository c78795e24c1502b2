// Package llmtest provides a scripted LLM client for tests.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"taskmate/pkg/llm"
)

// ErrScriptExhausted is returned when the client is called more times than scripted.
var ErrScriptExhausted = errors.New("llmtest: script exhausted")

// Step is one scripted model response.
type Step struct {
	Text      string
	Thinking  string
	ToolCalls []llm.ToolCall
	Usage     *llm.LLMUsage

	// Err fails StreamChat itself. StreamErr fails the stream after it started.
	Err       error
	StreamErr error
}

// Reply scripts a plain text answer.
func Reply(text string) Step {
	return Step{Text: text}
}

// CallTool scripts a single tool call with JSON arguments.
func CallTool(name, args string) Step {
	return Step{ToolCalls: []llm.ToolCall{ToolCall(name, args)}}
}

// ToolCall builds a tool call with an empty id; the client assigns one.
func ToolCall(name, args string) llm.ToolCall {
	return llm.ToolCall{Name: name, Function: llm.FunctionCall{Name: name, Arguments: args}}
}

// Fail scripts a call that fails before streaming.
func Fail(err error) Step {
	return Step{Err: err}
}

// Call records what the client was sent.
type Call struct {
	Messages []llm.Message
	Tools    []string
}

// ScriptedClient replays Steps in order.
type ScriptedClient struct {
	mu        sync.Mutex
	steps     []Step
	calls     []Call
	nextID    int
	Transient bool
}

func NewScriptedClient(steps ...Step) *ScriptedClient {
	return &ScriptedClient{steps: steps}
}

func (c *ScriptedClient) Provider() string { return "scripted" }

func (c *ScriptedClient) IsTransientError(err error) bool { return c.Transient }

// StreamChat implements llm.LLMClient.
func (c *ScriptedClient) StreamChat(ctx context.Context, messages []llm.Message, tools []llm.Tool) (<-chan llm.StreamChunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := Call{Messages: append([]llm.Message(nil), messages...)}
	for _, t := range tools {
		call.Tools = append(call.Tools, t.Name())
	}
	c.calls = append(c.calls, call)

	if len(c.steps) == 0 {
		return nil, ErrScriptExhausted
	}
	step := c.steps[0]
	c.steps = c.steps[1:]

	if step.Err != nil {
		return nil, step.Err
	}

	calls := make([]llm.ToolCall, len(step.ToolCalls))
	for i, tc := range step.ToolCalls {
		if tc.ID == "" {
			c.nextID++
			tc.ID = fmt.Sprintf("call_%d", c.nextID)
		}
		calls[i] = tc
	}

	ch := make(chan llm.StreamChunk, 4)
	go func() {
		defer close(ch)
		if step.Thinking != "" {
			ch <- llm.NewThinkingChunk(step.Thinking)
		}
		if step.Text != "" {
			ch <- llm.NewTextChunk(step.Text)
		}
		if len(calls) > 0 {
			ch <- llm.StreamChunk{ToolCalls: calls}
		}
		if step.StreamErr != nil {
			ch <- llm.NewErrorChunk(step.StreamErr.Error(), step.StreamErr, true)
			return
		}
		reason := llm.StopReasonStop
		if len(calls) > 0 {
			reason = llm.StopReasonToolCall
		}
		ch <- llm.NewFinalChunk(reason, step.Usage)
	}()
	return ch, nil
}

// Calls returns a copy of every recorded call.
func (c *ScriptedClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Remaining is the number of unused steps.
func (c *ScriptedClient) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.steps)
}
