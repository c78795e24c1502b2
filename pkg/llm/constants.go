package llm

// Message roles shared by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// StopReason constants define normalized reasons for generation termination.
// Providers map their native stop reasons onto these values.
const (
	StopReasonStop     = "stop"
	StopReasonLength   = "length"
	StopReasonToolCall = "tool_calls"
	StopReasonError    = "error"
)

// ContentBlock types.
const (
	BlockTypeText     = "text"
	BlockTypeThinking = "thinking"
	BlockTypeError    = "error"
)
