package gemini

import (
	"errors"
	"testing"

	"taskmate/pkg/llm"

	"google.golang.org/genai"
)

type addTask struct{}

func (addTask) Name() string        { return "add_task" }
func (addTask) Description() string { return "Add a task" }
func (addTask) Parameters() map[string]any {
	return map[string]any{
		"task": map[string]any{"type": "string", "description": "Task text"},
		"desc": map[string]any{"type": "string"},
	}
}
func (addTask) RequiredParameters() []string { return []string{"task"} }

func TestConvertTools(t *testing.T) {
	if convertTools(nil) != nil {
		t.Error("no tools should produce nil")
	}

	got := convertTools([]llm.Tool{addTask{}})
	if len(got) != 1 || len(got[0].FunctionDeclarations) != 1 {
		t.Fatalf("got %+v", got)
	}
	fd := got[0].FunctionDeclarations[0]
	if fd.Name != "add_task" || fd.Parameters == nil {
		t.Fatalf("declaration = %+v", fd)
	}
	if fd.Parameters.Type != genai.TypeObject {
		t.Errorf("type = %q", fd.Parameters.Type)
	}
	if fd.Parameters.Properties["task"].Type != genai.TypeString {
		t.Errorf("task type = %q", fd.Parameters.Properties["task"].Type)
	}
	if fd.Parameters.Properties["task"].Description != "Task text" {
		t.Errorf("task description = %q", fd.Parameters.Properties["task"].Description)
	}
	if len(fd.Parameters.Required) != 1 || fd.Parameters.Required[0] != "task" {
		t.Errorf("required = %v", fd.Parameters.Required)
	}
}

func TestConvertMessages(t *testing.T) {
	call := llm.ToolCall{ID: "c1", Name: "show_tasks", Function: llm.FunctionCall{Name: "show_tasks", Arguments: "{}"}}
	msgs := []llm.Message{
		llm.NewSystemMessage("be brief"),
		llm.NewUserMessage("what are my tasks?"),
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}},
		llm.NewToolResultMessage(call, "- Buy milk", false),
		llm.NewAssistantMessage("- Buy milk"),
	}

	contents, system := convertMessages(msgs)
	if system == nil || system.Parts[0].Text != "be brief" {
		t.Fatalf("system = %+v", system)
	}
	if len(contents) != 4 {
		t.Fatalf("contents = %d, want 4", len(contents))
	}

	wantRoles := []string{"user", "model", "user", "model"}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}

	fc := contents[1].Parts[0].FunctionCall
	if fc == nil || fc.Name != "show_tasks" {
		t.Errorf("function call = %+v", fc)
	}
	fr := contents[2].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "show_tasks" || fr.Response["result"] != "- Buy milk" {
		t.Errorf("function response = %+v", fr)
	}
}

func TestConvertMessages_ToolError(t *testing.T) {
	call := llm.ToolCall{ID: "c1", Name: "add_task"}
	contents, _ := convertMessages([]llm.Message{llm.NewToolResultMessage(call, "service down", true)})
	fr := contents[0].Parts[0].FunctionResponse
	if fr.Response["error"] != "service down" {
		t.Errorf("response = %+v", fr.Response)
	}
}

func TestConvertParts(t *testing.T) {
	seq := 0
	chunk := convertParts([]*genai.Part{
		{Text: "thinking...", Thought: true},
		{Text: "Sure."},
		{FunctionCall: &genai.FunctionCall{Name: "add_task", Args: map[string]any{"task": "Buy milk"}}},
	}, &seq)

	if len(chunk.ContentBlocks) != 2 || chunk.ContentBlocks[0].Type != llm.BlockTypeThinking {
		t.Errorf("blocks = %+v", chunk.ContentBlocks)
	}
	if len(chunk.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", chunk.ToolCalls)
	}
	tc := chunk.ToolCalls[0]
	if tc.ID != "gemini_call_1" || tc.Function.Arguments != `{"task":"Buy milk"}` {
		t.Errorf("tool call = %+v", tc)
	}
	if _, ok := tc.Meta[metaFunctionCall].(*genai.FunctionCall); !ok {
		t.Error("original function call should be kept for echoing")
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	if got := normalizeFinishReason(genai.FinishReasonStop); got != llm.StopReasonStop {
		t.Errorf("STOP -> %q", got)
	}
	if got := normalizeFinishReason(genai.FinishReasonMaxTokens); got != llm.StopReasonLength {
		t.Errorf("MAX_TOKENS -> %q", got)
	}
}

func TestIsTransientError(t *testing.T) {
	g := &GeminiClient{}
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 503, Service Unavailable: model is overloaded"), true},
		{errors.New("Error 429: RESOURCE EXHAUSTED"), true},
		{errors.New("Error 400: API key not valid"), false},
	}
	for _, tt := range tests {
		if got := g.IsTransientError(tt.err); got != tt.want {
			t.Errorf("IsTransientError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
