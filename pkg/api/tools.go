package api

import (
	"context"

	"taskmate/pkg/llm"
)

// Tool is a capability the model may call: schema plus handler.
type Tool interface {
	llm.Tool
	// Execute runs the tool with decoded, validated arguments.
	Execute(ctx context.Context, args map[string]any) (*ToolResult, error)
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	Details map[string]any `json:"details,omitempty"`
	IsError bool           `json:"is_error,omitempty"`
}

// ContentBlock is a unit of tool output.
type ContentBlock struct {
	Type string `json:"type"` // "text"
	Text string `json:"text,omitempty"`
}

// TextResult wraps plain text in a ToolResult.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ErrorResult reports a failure back to the model.
func ErrorResult(text string) *ToolResult {
	r := TextResult(text)
	r.IsError = true
	return r
}

// Text concatenates the text blocks of the result.
func (r *ToolResult) Text() string {
	if r == nil {
		return ""
	}
	var out string
	for i, b := range r.Content {
		if b.Type != "text" {
			continue
		}
		if i > 0 && out != "" {
			out += "\n"
		}
		out += b.Text
	}
	return out
}

// ToolRegistry manages the tools offered to the model.
type ToolRegistry interface {
	Register(tool Tool)
	Unregister(name string)
	Get(name string) (Tool, bool)
	GetAll() []Tool
}
