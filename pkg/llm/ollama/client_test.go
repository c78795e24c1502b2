package ollama

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskmate/pkg/llm"
)

type addTask struct{}

func (addTask) Name() string        { return "add_task" }
func (addTask) Description() string { return "Add a task" }
func (addTask) Parameters() map[string]any {
	return map[string]any{"task": map[string]any{"type": "string", "description": "Task text"}}
}
func (addTask) RequiredParameters() []string { return []string{"task"} }

func newTestClient(t *testing.T, h http.HandlerFunc) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewOllamaClient("llama3", srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestStreamChat_Text(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":"Hello"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":" world"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":2}`)
	})

	ch, err := c.StreamChat(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := llm.CollectStream(context.Background(), ch)
	if err != nil {
		t.Fatal(err)
	}
	if got := msg.GetTextContent(); got != "Hello world" {
		t.Errorf("text = %q", got)
	}
	if msg.Usage == nil || msg.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", msg.Usage)
	}
}

func TestStreamChat_ToolCall(t *testing.T) {
	var body string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"add_task","arguments":{"task":"Buy milk"}}}]},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`)
	})

	ch, err := c.StreamChat(context.Background(), []llm.Message{llm.NewUserMessage("add milk")}, []llm.Tool{addTask{}})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := llm.CollectStream(context.Background(), ch)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", msg.ToolCalls)
	}
	tc := msg.ToolCalls[0]
	if tc.Name != "add_task" || tc.Function.Arguments != `{"task":"Buy milk"}` || tc.ID == "" {
		t.Errorf("tool call = %+v", tc)
	}
	if !strings.Contains(body, `"add_task"`) {
		t.Errorf("request should declare tools: %s", body)
	}
}

func TestStreamChat_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'llama3' not found"}`)
	})

	if _, err := c.StreamChat(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, nil); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestConvertMessages(t *testing.T) {
	call := llm.ToolCall{ID: "c1", Name: "add_task", Function: llm.FunctionCall{Name: "add_task", Arguments: `{"task":"x"}`}}
	got := convertMessages([]llm.Message{
		llm.NewSystemMessage("sys"),
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}},
		llm.NewToolResultMessage(call, "failed", true),
	})

	if len(got) != 3 {
		t.Fatalf("messages = %d", len(got))
	}
	if got[0].Role != "system" || got[0].Content != "sys" {
		t.Errorf("system = %+v", got[0])
	}
	if len(got[1].ToolCalls) != 1 || got[1].ToolCalls[0].Function.Name != "add_task" {
		t.Errorf("assistant = %+v", got[1])
	}
	if got[2].ToolCallID != "c1" || got[2].Content != "error: failed" {
		t.Errorf("tool = %+v", got[2])
	}
}

func TestJSONFixingReadCloser(t *testing.T) {
	r := &jsonFixingReadCloser{body: io.NopCloser(strings.NewReader(`{"content":"costs \$5"}`))}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"content":"costs $5"}` {
		t.Errorf("got %s", out)
	}
}
