package openailm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskmate/pkg/llm"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// Client streams from the OpenAI Responses API or a compatible server.
type Client struct {
	client       *openai.Client
	provider     string
	model        string
	debugEnabled bool
	options      map[string]any
}

// NewClient creates a client for one model. baseURL may point at any
// OpenAI-compatible endpoint.
func NewClient(provider, apiKey, model, baseURL string, options map[string]any) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{
		client:   &client,
		provider: provider,
		model:    model,
		options:  options,
	}
}

func (c *Client) Provider() string {
	return c.provider + "/" + c.model
}

func (c *Client) SetDebug(enabled bool) {
	c.debugEnabled = enabled
}

// IsTransientError implements llm.LLMClient.
func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "timeout", "overloaded", "503 service unavailable", "502 bad gateway"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) requestOptions() []option.RequestOption {
	var opts []option.RequestOption
	if t, ok := llm.FloatOption(c.options, "temperature"); ok {
		opts = append(opts, option.WithJSONSet("temperature", t))
	}
	if p, ok := llm.FloatOption(c.options, "top_p"); ok {
		opts = append(opts, option.WithJSONSet("top_p", p))
	}
	if m, ok := llm.FloatOption(c.options, "max_tokens"); ok && m > 0 {
		opts = append(opts, option.WithJSONSet("max_output_tokens", int(m)))
	}
	return opts
}

func reasoningEffort(options map[string]any) (shared.ReasoningEffort, bool) {
	effort, _ := options["thinking_effort"].(string)
	switch effort {
	case "", "off":
		return "", false
	case "low":
		return shared.ReasoningEffortLow, true
	case "high":
		return shared.ReasoningEffortHigh, true
	default:
		return shared.ReasoningEffortMedium, true
	}
}

// pendingCall accumulates one function call across stream events.
type pendingCall struct {
	itemID string
	callID string
	name   string
	args   strings.Builder
}

// StreamChat implements llm.LLMClient.
func (c *Client) StreamChat(ctx context.Context, messages []llm.Message, tools []llm.Tool) (<-chan llm.StreamChunk, error) {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: convertMessages(messages),
		},
	}
	if effort, ok := reasoningEffort(c.options); ok {
		params.Reasoning = shared.ReasoningParam{Effort: effort}
	}
	if converted := convertTools(tools); len(converted) > 0 {
		params.Tools = converted
	}

	chunkCh := make(chan llm.StreamChunk, 100)

	go func() {
		defer close(chunkCh)

		stream := c.client.Responses.NewStreaming(ctx, params, c.requestOptions()...)
		defer stream.Close()

		debugger := llm.NewStreamDebugger(ctx, c.provider, c.debugEnabled)
		defer debugger.Close()

		var usage *llm.LLMUsage
		finish := llm.StopReasonStop
		failed := false
		var order []string
		calls := make(map[string]*pendingCall)

		callFor := func(itemID string) *pendingCall {
			pc, ok := calls[itemID]
			if !ok {
				pc = &pendingCall{itemID: itemID}
				calls[itemID] = pc
				order = append(order, itemID)
			}
			return pc
		}

		for stream.Next() {
			event := stream.Current()
			debugger.WriteString(event.RawJSON())

			switch variant := event.AsAny().(type) {
			case responses.ResponseTextDeltaEvent:
				chunkCh <- llm.NewTextChunk(variant.Delta)

			case responses.ResponseReasoningSummaryTextDeltaEvent:
				chunkCh <- llm.NewThinkingChunk(variant.Delta)

			case responses.ResponseOutputItemAddedEvent:
				if variant.Item.Type == "function_call" {
					pc := callFor(variant.Item.ID)
					pc.callID = variant.Item.CallID
					pc.name = variant.Item.Name
				}

			case responses.ResponseFunctionCallArgumentsDeltaEvent:
				callFor(variant.ItemID).args.WriteString(variant.Delta)

			case responses.ResponseOutputItemDoneEvent:
				if variant.Item.Type == "function_call" {
					pc := callFor(variant.Item.ID)
					if variant.Item.CallID != "" {
						pc.callID = variant.Item.CallID
					}
					if variant.Item.Name != "" {
						pc.name = variant.Item.Name
					}
					if pc.args.Len() == 0 && variant.Item.Arguments != "" {
						pc.args.WriteString(variant.Item.Arguments)
					}
				}

			case responses.ResponseCompletedEvent:
				u := variant.Response.Usage
				if u.TotalTokens > 0 {
					usage = &llm.LLMUsage{
						PromptTokens:     int(u.InputTokens),
						CompletionTokens: int(u.OutputTokens),
						TotalTokens:      int(u.TotalTokens),
					}
				}

			case responses.ResponseIncompleteEvent:
				finish = llm.StopReasonLength
				chunkCh <- llm.NewErrorChunk("response incomplete", nil, false)

			case responses.ResponseFailedEvent:
				failed = true
				chunkCh <- llm.NewErrorChunk("response failed", errors.New("openai: response failed"), true)

			case responses.ResponseErrorEvent:
				failed = true
				chunkCh <- llm.NewErrorChunk(fmt.Sprintf("API error: %s", variant.Message), errors.New(variant.Message), true)
			}
		}

		if err := stream.Err(); err != nil {
			slog.ErrorContext(ctx, "OpenAI stream error", "provider", c.Provider(), "error", err)
			chunkCh <- llm.NewErrorChunk(fmt.Sprintf("stream error: %v", err), err, true)
			return
		}
		if failed {
			return
		}

		if found := collectCalls(order, calls); len(found) > 0 {
			finish = llm.StopReasonToolCall
			chunkCh <- llm.StreamChunk{ToolCalls: found}
		}

		if usage != nil {
			usage.StopReason = finish
		}
		chunkCh <- llm.NewFinalChunk(finish, usage)
		llm.LogUsage(ctx, c.model, usage)
	}()

	return chunkCh, nil
}

// collectCalls returns the accumulated calls in arrival order. The call id,
// not the output item id, is what function_call_output must refer to.
func collectCalls(order []string, calls map[string]*pendingCall) []llm.ToolCall {
	out := make([]llm.ToolCall, 0, len(order))
	for _, id := range order {
		pc := calls[id]
		callID := pc.callID
		if callID == "" {
			callID = pc.itemID
		}
		args := pc.args.String()
		if args == "" {
			args = "{}"
		}
		out = append(out, llm.ToolCall{
			ID:       callID,
			Name:     pc.name,
			Function: llm.FunctionCall{Name: pc.name, Arguments: args},
		})
	}
	return out
}

func convertMessages(messages []llm.Message) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.GetTextContent(), responses.EasyInputMessageRoleSystem))
		case llm.RoleUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.GetTextContent(), responses.EasyInputMessageRoleUser))
		case llm.RoleAssistant:
			if text := m.GetTextContent(); text != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range m.ToolCalls {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(tc.Function.Arguments, tc.ID, tc.Name))
			}
		case llm.RoleTool:
			output := m.GetTextContent()
			if m.IsError {
				output = "error: " + output
			}
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.ToolCallID, output))
		}
	}

	return items
}

func convertTools(tools []llm.Tool) []responses.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]responses.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  llm.ToolSchema(t),
			},
		})
	}
	return out
}
