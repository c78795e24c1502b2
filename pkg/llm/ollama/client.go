package ollama

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"taskmate/pkg/httpkit"
	"taskmate/pkg/llm"

	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OllamaClient streams chat completions from a local Ollama server.
type OllamaClient struct {
	client       *api.Client
	model        string
	options      map[string]any
	debugEnabled bool
}

// NewOllamaClient creates a client for model. An empty baseURL uses
// OLLAMA_HOST from the environment.
func NewOllamaClient(model, baseURL string, options map[string]any) (*OllamaClient, error) {
	var client *api.Client
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		// Local models may take minutes to load, so no overall timeout.
		httpClient := httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(&JSONFixingRoundTripper{Proxied: httpkit.NewTransport()}),
			httpkit.WithRetry(1, time.Second),
		)
		client = api.NewClient(u, httpClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	slog.Info("Ollama client initialized", "model", model, "base_url", baseURL)

	return &OllamaClient{
		client:  client,
		model:   model,
		options: options,
	}, nil
}

func (o *OllamaClient) SetDebug(enabled bool) {
	o.debugEnabled = enabled
}

func (o *OllamaClient) Provider() string {
	return "ollama/" + o.model
}

// StreamChat implements llm.LLMClient.
func (o *OllamaClient) StreamChat(ctx context.Context, messages []llm.Message, tools []llm.Tool) (<-chan llm.StreamChunk, error) {
	apiTools, err := convertTools(tools)
	if err != nil {
		return nil, err
	}

	stream := true
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: convertMessages(messages),
		Options:  o.options,
		Tools:    apiTools,
		Stream:   &stream,
	}

	chunkCh := make(chan llm.StreamChunk, 100)
	startResultCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)

		debugger := llm.NewStreamDebugger(ctx, "ollama", o.debugEnabled)
		defer debugger.Close()

		started := false
		callSeq := 0

		err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			debugger.WriteJSON(resp)
			if !started {
				started = true
				startResultCh <- nil
			}

			if resp.Message.Thinking != "" {
				chunkCh <- llm.NewThinkingChunk(resp.Message.Thinking)
			}
			if resp.Message.Content != "" {
				chunkCh <- llm.NewTextChunk(resp.Message.Content)
			}

			if len(resp.Message.ToolCalls) > 0 {
				var calls []llm.ToolCall
				for _, tc := range resp.Message.ToolCalls {
					args, err := json.Marshal(tc.Function.Arguments)
					if err != nil {
						slog.WarnContext(ctx, "Failed to marshal tool call arguments", "provider", "ollama", "error", err)
						args = []byte("{}")
					}
					callSeq++
					id := tc.ID
					if id == "" {
						id = fmt.Sprintf("ollama_call_%d", callSeq)
					}
					calls = append(calls, llm.ToolCall{
						ID:       id,
						Name:     tc.Function.Name,
						Function: llm.FunctionCall{Name: tc.Function.Name, Arguments: string(args)},
					})
				}
				chunkCh <- llm.StreamChunk{ToolCalls: calls}
			}

			if resp.Done {
				reason := resp.DoneReason
				if reason == "" {
					reason = llm.StopReasonStop
				}
				usage := &llm.LLMUsage{
					PromptTokens:     resp.PromptEvalCount,
					CompletionTokens: resp.EvalCount,
					TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
					StopReason:       reason,
				}
				if reason == llm.StopReasonLength {
					slog.WarnContext(ctx, "Response truncated due to length", "provider", "ollama")
				}
				chunkCh <- llm.NewFinalChunk(reason, usage)
				llm.LogUsage(ctx, o.model, usage)
			}
			return nil
		})

		if err != nil {
			slog.ErrorContext(ctx, "Ollama stream error", "model", o.model, "error", err)
			if !started {
				startResultCh <- err
			} else {
				chunkCh <- llm.NewErrorChunk(fmt.Sprintf("stream interrupted: %v", err), err, true)
			}
		} else if !started {
			startResultCh <- nil
		}
	}()

	select {
	case err := <-startResultCh:
		if err != nil {
			return nil, err
		}
		return chunkCh, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// convertTools goes through JSON because api.Tool mirrors the OpenAI
// function-calling format.
func convertTools(tools []llm.Tool) ([]api.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(llm.FunctionSpecs(tools))
	if err != nil {
		return nil, fmt.Errorf("marshal tools: %w", err)
	}
	var out []api.Tool
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("convert tools: %w", err)
	}
	return out, nil
}

func convertMessages(messages []llm.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))

	for _, m := range messages {
		msg := api.Message{
			Role:    m.Role,
			Content: m.GetTextContent(),
		}

		if m.Role == llm.RoleAssistant {
			for _, tc := range m.ToolCalls {
				var args api.ToolCallFunctionArguments
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
					slog.Warn("Failed to convert tool arguments for history", "provider", "ollama", "error", err)
				}
				msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
					ID: tc.ID,
					Function: api.ToolCallFunction{
						Name:      tc.Function.Name,
						Arguments: args,
					},
				})
			}
		}

		if m.Role == llm.RoleTool {
			msg.ToolCallID = m.ToolCallID
			if m.IsError {
				msg.Content = "error: " + msg.Content
			}
		}

		out = append(out, msg)
	}

	return out
}

// IsTransientError implements llm.LLMClient.
func (o *OllamaClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "overloaded")
}

// JSONFixingRoundTripper strips illegal escapes such as \$ that some
// models emit inside streamed JSON.
type JSONFixingRoundTripper struct {
	Proxied http.RoundTripper
}

func (j *JSONFixingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := j.Proxied.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") || strings.Contains(ct, "application/x-ndjson") {
		resp.Body = &jsonFixingReadCloser{body: resp.Body}
	}
	return resp, nil
}

type jsonFixingReadCloser struct {
	body io.ReadCloser
}

var illegalEscapeRegex = regexp.MustCompile(`\\([^\/\\bfnrtu"])`)

func (j *jsonFixingReadCloser) Read(p []byte) (int, error) {
	n, err := j.body.Read(p)
	if n > 0 {
		content := string(p[:n])
		fixed := illegalEscapeRegex.ReplaceAllString(content, "$1")
		if len(fixed) < len(content) {
			n = copy(p, fixed)
		}
	}
	return n, err
}

func (j *jsonFixingReadCloser) Close() error {
	return j.body.Close()
}
