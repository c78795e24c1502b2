package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"taskmate/pkg/apperr"
	"taskmate/pkg/config"
	"taskmate/pkg/llm"
	"taskmate/pkg/llm/llmtest"
	"taskmate/pkg/prompt"
	"taskmate/pkg/session"
	"taskmate/pkg/tasks"
	"taskmate/pkg/tools"
)

func newEngine(t *testing.T, client llm.LLMClient, svc tasks.Service, mutate func(*config.SystemConfig)) *AgentEngine {
	t.Helper()
	sys := config.DefaultSystemConfig()
	if mutate != nil {
		mutate(sys)
	}
	e := NewAgentEngine(client, prompt.NewComposer("", session.PolicyFor(sys.HistoryWindow)), sys)
	e.SetToolRegistry(tools.NewTaskRegistry(svc))
	return e
}

func lastMessage(c llmtest.Call) llm.Message {
	return c.Messages[len(c.Messages)-1]
}

func TestDirectAnswer(t *testing.T) {
	svc := tasks.NewMemoryService("Buy milk")
	client := llmtest.NewScriptedClient(llmtest.Reply("Paris is the capital of France."))
	e := newEngine(t, client, svc, nil)

	reply, err := e.Run(context.Background(), nil, "What is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "Paris is the capital of France." {
		t.Errorf("text = %q", reply.Text)
	}
	if len(reply.ToolCalls) != 0 {
		t.Errorf("tool calls = %v, want none", reply.ToolCalls)
	}
	if len(svc.Created()) != 0 {
		t.Error("direct answer must not create tasks")
	}

	calls := client.Calls()
	if len(calls) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(calls))
	}
	if got := calls[0].Tools; len(got) != 2 || got[0] != tools.AddTaskName || got[1] != tools.ShowTasksName {
		t.Errorf("offered tools = %v", got)
	}
	if calls[0].Messages[0].Role != llm.RoleSystem {
		t.Error("system prompt must come first")
	}
}

func TestAddTaskCreatesExactlyOne(t *testing.T) {
	svc := tasks.NewMemoryService()
	client := llmtest.NewScriptedClient(
		llmtest.CallTool(tools.AddTaskName, `{"task":"Buy milk"}`),
		llmtest.Reply("I added \"Buy milk\" to your list."),
	)
	e := newEngine(t, client, svc, nil)

	reply, err := e.Run(context.Background(), nil, "add a task to buy milk")
	if err != nil {
		t.Fatal(err)
	}

	created := svc.Created()
	if len(created) != 1 || created[0].Content != "Buy milk" {
		t.Fatalf("created = %+v", created)
	}
	if !reply.UsedTool(tools.AddTaskName) {
		t.Error("reply should record add_task")
	}
	if reply.ToolCalls[0].Result != "Task added: Buy milk" || reply.ToolCalls[0].IsError {
		t.Errorf("invocation = %+v", reply.ToolCalls[0])
	}

	// The follow-up request carries the tool result and no schemas.
	calls := client.Calls()
	if len(calls) != 2 {
		t.Fatalf("llm calls = %d", len(calls))
	}
	if len(calls[1].Tools) != 0 {
		t.Errorf("tools offered after budget = %v", calls[1].Tools)
	}
	last := lastMessage(calls[1])
	if last.Role != llm.RoleTool || last.ToolCallID != "call_1" || last.GetTextContent() != "Task added: Buy milk" {
		t.Errorf("tool result message = %+v", last)
	}
}

func TestRemindMeScenario(t *testing.T) {
	svc := tasks.NewMemoryService()
	client := llmtest.NewScriptedClient(
		llmtest.CallTool(tools.AddTaskName, `{"task":"call mom tomorrow"}`),
		llmtest.Reply("Done, I'll remind you to call mom tomorrow."),
	)
	e := newEngine(t, client, svc, nil)

	reply, err := e.Run(context.Background(), nil, "remind me to call mom tomorrow")
	if err != nil {
		t.Fatal(err)
	}
	created := svc.Created()
	if len(created) != 1 {
		t.Fatalf("created = %+v, want exactly one task", created)
	}
	if created[0].Content != "call mom tomorrow" || created[0].Description != "" {
		t.Errorf("task = %+v, want content %q and no description", created[0], "call mom tomorrow")
	}
	if reply.Text == "" {
		t.Error("expected a confirmation")
	}
	for _, line := range strings.Split(reply.Text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			t.Errorf("confirmation should not be a task list: %q", reply.Text)
		}
	}
}

func TestShowTasksScenario(t *testing.T) {
	svc := tasks.NewMemoryService("Buy milk", "Call mom")
	client := llmtest.NewScriptedClient(
		llmtest.CallTool(tools.ShowTasksName, `{}`),
		llmtest.Reply("- Buy milk\n- Call mom"),
	)
	e := newEngine(t, client, svc, nil)

	reply, err := e.Run(context.Background(), nil, "what are my tasks?")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "- Buy milk\n- Call mom" {
		t.Errorf("text = %q", reply.Text)
	}
	last := lastMessage(client.Calls()[1])
	if got := last.GetTextContent(); got != "- Buy milk\n- Call mom" {
		t.Errorf("tool result = %q", got)
	}
	if len(svc.Created()) != 0 {
		t.Error("show_tasks must not create tasks")
	}
}

func TestHandleTurnCommitsExchanges(t *testing.T) {
	const n = 3
	var steps []llmtest.Step
	for i := 0; i < n; i++ {
		steps = append(steps, llmtest.Reply("answer"))
	}
	client := llmtest.NewScriptedClient(steps...)
	e := newEngine(t, client, tasks.NewMemoryService(), nil)
	sess := session.New("s1")

	for i := 0; i < n; i++ {
		if _, err := e.HandleTurn(context.Background(), sess, "question"); err != nil {
			t.Fatal(err)
		}
	}

	turns := sess.History.Turns()
	if len(turns) != 2*n {
		t.Fatalf("turns = %d, want %d", len(turns), 2*n)
	}
	for i, turn := range turns {
		want := session.RoleUser
		if i%2 == 1 {
			want = session.RoleAssistant
		}
		if turn.Role != want {
			t.Errorf("turn %d role = %s, want %s", i, turn.Role, want)
		}
	}

	// The third request sees both prior exchanges.
	if got := len(client.Calls()[2].Messages); got != 1+4+1 {
		t.Errorf("third request messages = %d", got)
	}
}

func TestHandleTurnFailureDoesNotCommit(t *testing.T) {
	tests := []struct {
		name string
		step llmtest.Step
	}{
		{"start failure", llmtest.Fail(errors.New("503 overloaded"))},
		{"stream failure", llmtest.Step{Text: "partial", StreamErr: errors.New("connection reset")}},
		{"empty reply", llmtest.Reply("   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, llmtest.NewScriptedClient(tt.step), tasks.NewMemoryService(), nil)
			sess := session.New("s1")

			_, err := e.HandleTurn(context.Background(), sess, "hello")
			if !apperr.IsRemote(err) {
				t.Fatalf("err = %v, want RemoteServiceError", err)
			}
			if sess.History.Len() != 0 {
				t.Errorf("history len = %d, want 0", sess.History.Len())
			}
		})
	}
}

func TestEmptyReplyIsMalformed(t *testing.T) {
	e := newEngine(t, llmtest.NewScriptedClient(llmtest.Reply("")), tasks.NewMemoryService(), nil)
	_, err := e.Run(context.Background(), nil, "hi")
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("err = %v, want ErrEmptyReply", err)
	}
}

func TestToolBudget(t *testing.T) {
	svc := tasks.NewMemoryService()
	client := llmtest.NewScriptedClient(
		llmtest.Step{ToolCalls: []llm.ToolCall{
			llmtest.ToolCall(tools.AddTaskName, `{"task":"one"}`),
			llmtest.ToolCall(tools.AddTaskName, `{"task":"two"}`),
		}},
		llmtest.Reply("Added one task."),
	)
	e := newEngine(t, client, svc, nil)

	reply, err := e.Run(context.Background(), nil, "add one and two")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(svc.Created()); got != 1 {
		t.Fatalf("created %d tasks, want 1", got)
	}
	if len(reply.ToolCalls) != 2 || !reply.ToolCalls[1].IsError || reply.ToolCalls[1].Result != ToolLimitText {
		t.Errorf("invocations = %+v", reply.ToolCalls)
	}

	msgs := client.Calls()[1].Messages
	last := msgs[len(msgs)-1]
	if !last.IsError || last.ToolCallID != "call_2" {
		t.Errorf("limit result = %+v", last)
	}
}

func TestToolBudgetAllowsMoreCalls(t *testing.T) {
	svc := tasks.NewMemoryService()
	client := llmtest.NewScriptedClient(
		llmtest.CallTool(tools.AddTaskName, `{"task":"one"}`),
		llmtest.CallTool(tools.AddTaskName, `{"task":"two"}`),
		llmtest.Reply("Added both."),
	)
	e := newEngine(t, client, svc, func(c *config.SystemConfig) { c.MaxToolCalls = 2 })

	if _, err := e.Run(context.Background(), nil, "add one and two"); err != nil {
		t.Fatal(err)
	}
	if got := len(svc.Created()); got != 2 {
		t.Errorf("created %d tasks, want 2", got)
	}
	calls := client.Calls()
	if len(calls[1].Tools) != 2 || len(calls[2].Tools) != 0 {
		t.Errorf("offered tools per call = %v / %v", calls[1].Tools, calls[2].Tools)
	}
}

func TestToolsDisabled(t *testing.T) {
	client := llmtest.NewScriptedClient(llmtest.Reply("ok"))
	e := newEngine(t, client, tasks.NewMemoryService(), func(c *config.SystemConfig) { c.EnableTools = false })

	if _, err := e.Run(context.Background(), nil, "hi"); err != nil {
		t.Fatal(err)
	}
	if got := client.Calls()[0].Tools; len(got) != 0 {
		t.Errorf("tools offered = %v", got)
	}
}

func TestToolErrorsReachTheModel(t *testing.T) {
	failing := tasks.NewMemoryService()
	failing.FailCreate(errors.New("401 unauthorized"))

	tests := []struct {
		name    string
		svc     *tasks.MemoryService
		call    llmtest.Step
		wantSub string
	}{
		{"unknown tool", tasks.NewMemoryService(), llmtest.CallTool("delete_task", `{}`), "unknown tool"},
		{"bad json", tasks.NewMemoryService(), llmtest.CallTool(tools.AddTaskName, `{"task":`), "parse tool arguments"},
		{"missing argument", tasks.NewMemoryService(), llmtest.CallTool(tools.AddTaskName, `{}`), "missing required argument"},
		{"blank task", tasks.NewMemoryService(), llmtest.CallTool(tools.AddTaskName, `{"task":" "}`), "must not be empty"},
		{"remote failure", failing, llmtest.CallTool(tools.AddTaskName, `{"task":"x"}`), "401"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llmtest.NewScriptedClient(tt.call, llmtest.Reply("Sorry, that did not work."))
			e := newEngine(t, client, tt.svc, nil)

			reply, err := e.Run(context.Background(), nil, "do it")
			if err != nil {
				t.Fatal(err)
			}
			if len(reply.ToolCalls) != 1 || !reply.ToolCalls[0].IsError {
				t.Fatalf("invocations = %+v", reply.ToolCalls)
			}
			last := lastMessage(client.Calls()[1])
			if !last.IsError || !strings.Contains(last.GetTextContent(), tt.wantSub) {
				t.Errorf("tool result = %q, want it to contain %q", last.GetTextContent(), tt.wantSub)
			}
			if len(tt.svc.Created()) != 0 {
				t.Error("no task should have been created")
			}
		})
	}
}

type blockingClient struct{}

func (blockingClient) Provider() string               { return "blocking" }
func (blockingClient) IsTransientError(err error) bool { return false }

func (blockingClient) StreamChat(ctx context.Context, _ []llm.Message, _ []llm.Tool) (<-chan llm.StreamChunk, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunTimeout(t *testing.T) {
	e := newEngine(t, blockingClient{}, tasks.NewMemoryService(), func(c *config.SystemConfig) { c.LLMTimeoutMs = 20 })

	_, err := e.Run(context.Background(), nil, "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if !apperr.IsRemote(err) {
		t.Errorf("err = %T, want RemoteServiceError", err)
	}
}

func TestRunDoesNotMutateTurns(t *testing.T) {
	sess := session.New("s1")
	sess.History.AppendExchange("hi", "hello")
	before := sess.History.Turns()

	e := newEngine(t, llmtest.NewScriptedClient(llmtest.Reply("ok")), tasks.NewMemoryService(), nil)
	if _, err := e.Run(context.Background(), before, "again"); err != nil {
		t.Fatal(err)
	}
	if sess.History.Len() != 2 {
		t.Errorf("history len = %d, want 2", sess.History.Len())
	}
}
