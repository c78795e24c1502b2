package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskmate/pkg/api"
	"taskmate/pkg/apperr"
	"taskmate/pkg/config"
	"taskmate/pkg/llm"
	"taskmate/pkg/monitor"
	"taskmate/pkg/prompt"
	"taskmate/pkg/session"
	"taskmate/pkg/tools"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reply is the outcome of one turn.
type Reply = api.Reply

// ToolLimitText is the tool result sent for calls beyond the per-turn budget.
const ToolLimitText = "Error: tool call limit reached for this turn"

// ErrEmptyReply means the model finished without any text for the user.
var ErrEmptyReply = errors.New("model returned an empty reply")

// AgentEngine runs the bounded tool loop for one user turn.
// It implements api.AgentEngine.
type AgentEngine struct {
	client       llm.LLMClient
	sysCfg       *config.SystemConfig
	composer     *prompt.Composer
	toolRegistry api.ToolRegistry
}

// NewAgentEngine wires the client and prompt composer. Tools are added
// with SetToolRegistry or RegisterTool.
func NewAgentEngine(client llm.LLMClient, composer *prompt.Composer, sysCfg *config.SystemConfig) *AgentEngine {
	if sysCfg == nil {
		sysCfg = config.DefaultSystemConfig()
	}
	if composer == nil {
		composer = prompt.NewComposer("", session.PolicyFor(sysCfg.HistoryWindow))
	}
	return &AgentEngine{
		client:   client,
		sysCfg:   sysCfg,
		composer: composer,
	}
}

// SetToolRegistry sets the registry offered to the model.
func (e *AgentEngine) SetToolRegistry(tr api.ToolRegistry) {
	e.toolRegistry = tr
}

// RegisterTool adds tools, creating the registry on first use.
func (e *AgentEngine) RegisterTool(tl ...api.Tool) {
	if e.toolRegistry == nil {
		e.toolRegistry = tools.NewToolRegistry()
	}
	for _, t := range tl {
		e.toolRegistry.Register(t)
	}
}

// HandleTurn runs one turn for sess and commits the user/assistant pair
// only when the turn succeeds. Turns of the same session are serialised.
func (e *AgentEngine) HandleTurn(ctx context.Context, sess *session.Session, input string) (*Reply, error) {
	sess.LockTurn()
	defer sess.UnlockTurn()

	reply, err := e.Run(ctx, sess.History.Turns(), input)
	if err != nil {
		return nil, err
	}

	sess.History.AppendExchange(input, reply.Text)
	slog.DebugContext(ctx, "Turn committed", "session", sess.ID, "turns", sess.History.Len())
	return reply, nil
}

// Run computes the reply to input given the prior turns. It never touches
// history; the scratch messages of the tool loop are discarded on return.
func (e *AgentEngine) Run(ctx context.Context, turns []session.Turn, input string) (*Reply, error) {
	if monitor.TraceID(ctx) == "" {
		ctx = monitor.WithTraceID(ctx, uuid.NewString())
	}
	if e.sysCfg.LLMTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.sysCfg.LLMTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	msgs := e.composer.Compose(turns, input)
	available := e.availableTools()
	budget := e.sysCfg.MaxToolCalls
	used := 0
	reply := &Reply{}

	slog.InfoContext(ctx, "Agent turn started", "history", len(turns), "tools", len(available), "budget", budget)

	for {
		var offered []llm.Tool
		if used < budget {
			offered = available
		}

		msg, err := e.callLLM(ctx, msgs, offered)
		if err != nil {
			slog.ErrorContext(ctx, "LLM call failed", "provider", e.client.Provider(), "error", err)
			return nil, apperr.Remote("llm", "stream_chat", err)
		}
		reply.Usage = reply.Usage.Add(msg.Usage)

		// Calls are only honoured while schemas were offered, which bounds the loop.
		if len(msg.ToolCalls) == 0 || len(offered) == 0 {
			text := strings.TrimSpace(msg.GetTextContent())
			if text == "" {
				return nil, apperr.Remote("llm", "stream_chat", ErrEmptyReply)
			}
			reply.Text = text
			slog.InfoContext(ctx, "Agent turn finished", "tool_calls", len(reply.ToolCalls), "chars", len(text))
			return reply, nil
		}

		msgs = append(msgs, msg)
		for _, tc := range msg.ToolCalls {
			inv := api.ToolInvocation{ID: tc.ID, Name: tc.Name, Arguments: tc.Function.Arguments}
			if used >= budget {
				slog.WarnContext(ctx, "Tool call over budget", "tool", tc.Name, "budget", budget)
				inv.Result, inv.IsError = ToolLimitText, true
			} else {
				used++
				res := e.ResolveToolCall(ctx, tc)
				inv.Result, inv.IsError = res.Text(), res.IsError
			}
			reply.ToolCalls = append(reply.ToolCalls, inv)
			msgs = append(msgs, llm.NewToolResultMessage(tc, inv.Result, inv.IsError))
		}
	}
}

func (e *AgentEngine) availableTools() []llm.Tool {
	if !e.sysCfg.EnableTools || e.toolRegistry == nil {
		return nil
	}
	all := e.toolRegistry.GetAll()
	out := make([]llm.Tool, len(all))
	for i, t := range all {
		out[i] = t
	}
	return out
}

func (e *AgentEngine) callLLM(ctx context.Context, msgs []llm.Message, offered []llm.Tool) (llm.Message, error) {
	chunkCh, err := e.client.StreamChat(ctx, msgs, offered)
	if err != nil {
		return llm.Message{}, err
	}
	msg, err := llm.CollectStream(ctx, chunkCh)
	if err != nil {
		return llm.Message{}, err
	}
	if thinking := msg.GetThinkingContent(); thinking != "" {
		slog.DebugContext(ctx, "Model thinking", "chars", len(thinking))
	}
	return msg, nil
}

// ResolveToolCall executes one call and always returns a result. Unknown
// tools, bad arguments, handler errors and panics become error results so
// the model can tell the user what happened.
func (e *AgentEngine) ResolveToolCall(ctx context.Context, tc llm.ToolCall) (res *api.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Tool execution panicked", "tool", tc.Name, "error", r)
			res = api.ErrorResult("Error: internal error while running the tool")
		}
	}()

	name := tc.Name
	if name == "" {
		name = tc.Function.Name
	}
	name = strings.TrimPrefix(name, "functions.")

	var tool api.Tool
	var ok bool
	if e.toolRegistry != nil {
		tool, ok = e.toolRegistry.Get(name)
	}
	if !ok {
		slog.ErrorContext(ctx, "Unknown tool call", "name", tc.Name)
		return api.ErrorResult(fmt.Sprintf("Error: unknown tool '%s'", tc.Name))
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			slog.ErrorContext(ctx, "Failed to parse tool args", "tool", name, "error", err)
			return api.ErrorResult(fmt.Sprintf("Error: failed to parse tool arguments: %v", err))
		}
	}

	if e.sysCfg.ValidateToolArgs {
		if err := tools.ValidateArgs(tool, args); err != nil {
			slog.WarnContext(ctx, "Tool arguments rejected", "tool", name, "error", err)
			return api.ErrorResult("Error: " + err.Error())
		}
	}

	slog.InfoContext(ctx, "Executing tool", "name", name, "args", args)
	res, err := tool.Execute(ctx, args)
	if err != nil {
		slog.ErrorContext(ctx, "Tool execution error", "name", name, "error", err)
		return api.ErrorResult(fmt.Sprintf("Error: tool execution failed: %v", err))
	}
	if res == nil {
		return api.TextResult("")
	}
	return res
}
