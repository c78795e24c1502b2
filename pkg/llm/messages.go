package llm

import "strings"

// Message is one entry of the provider-neutral conversation.
type Message struct {
	Role    string         `json:"role"` // "system", "user", "assistant", "tool"
	Content []ContentBlock `json:"content"`

	// ToolCalls holds the calls requested by the model (role: assistant).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID, ToolName and IsError describe a tool result (role: tool).
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`

	// Usage is filled by CollectStream for assistant messages.
	Usage *LLMUsage `json:"-"`
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Function FunctionCall `json:"function"`

	// Meta carries provider-specific data that must be echoed back
	// (for example Gemini thought signatures). Never serialized.
	Meta map[string]any `json:"-"`
}

// FunctionCall holds the called function and its JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ContentBlock is a unit of message content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// StreamChunk is one incremental piece of a streamed response.
type StreamChunk struct {
	ContentBlocks []ContentBlock `json:"content_blocks,omitempty"`
	ToolCalls     []ToolCall     `json:"tool_calls,omitempty"`

	IsFinal      bool      `json:"is_final"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        *LLMUsage `json:"usage,omitempty"`

	// Error is a human readable description. RawError is set when the
	// stream failed and no more chunks will follow.
	Error    string `json:"error,omitempty"`
	RawError error  `json:"-"`
}

// NewTextMessage builds a single-block text message.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{NewTextBlock(text)},
	}
}

func NewSystemMessage(text string) Message    { return NewTextMessage(RoleSystem, text) }
func NewUserMessage(text string) Message      { return NewTextMessage(RoleUser, text) }
func NewAssistantMessage(text string) Message { return NewTextMessage(RoleAssistant, text) }

// NewToolResultMessage builds the message that returns a tool outcome to the model.
func NewToolResultMessage(call ToolCall, text string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		Content:    []ContentBlock{NewTextBlock(text)},
		ToolCallID: call.ID,
		ToolName:   call.Name,
		IsError:    isError,
	}
}

// GetTextContent concatenates the text blocks, ignoring thinking.
func (m *Message) GetTextContent() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if block.Type == BlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// GetThinkingContent concatenates the thinking blocks.
func (m *Message) GetThinkingContent() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if block.Type == BlockTypeThinking {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

func NewThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeThinking, Text: text}
}

// NewTextChunk builds a text delta chunk.
func NewTextChunk(text string) StreamChunk {
	return StreamChunk{ContentBlocks: []ContentBlock{NewTextBlock(text)}}
}

// NewThinkingChunk builds a reasoning delta chunk.
func NewThinkingChunk(text string) StreamChunk {
	return StreamChunk{ContentBlocks: []ContentBlock{NewThinkingBlock(text)}}
}

// NewFinalChunk builds the terminating chunk carrying usage.
func NewFinalChunk(reason string, usage *LLMUsage) StreamChunk {
	return StreamChunk{
		IsFinal:      true,
		FinishReason: reason,
		Usage:        usage,
	}
}

// NewErrorChunk reports a stream failure. A fatal chunk ends the stream.
func NewErrorChunk(msg string, err error, fatal bool) StreamChunk {
	c := StreamChunk{Error: msg, RawError: err}
	if fatal {
		c.IsFinal = true
		c.FinishReason = StopReasonError
	}
	return c
}
