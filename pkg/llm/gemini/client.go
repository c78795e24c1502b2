package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskmate/pkg/llm"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/genai"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const metaFunctionCall = "gemini_function_call"

// GeminiClient streams chat completions from the Gemini API.
type GeminiClient struct {
	client       *genai.Client
	model        string
	useThought   bool
	options      map[string]any
	debugEnabled bool
}

// NewGeminiClient creates a client bound to one model and API key.
func NewGeminiClient(ctx context.Context, apiKey, model string, useThought bool, options map[string]any) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client:     client,
		model:      model,
		useThought: useThought,
		options:    options,
	}, nil
}

// SetDebug toggles raw chunk dumps.
func (g *GeminiClient) SetDebug(enabled bool) {
	g.debugEnabled = enabled
}

func (g *GeminiClient) Provider() string {
	return "gemini/" + g.model
}

func (g *GeminiClient) generateConfig(system *genai.Content, tools []*genai.Tool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             tools,
	}
	if g.useThought {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	if t, ok := llm.FloatOption(g.options, "temperature"); ok {
		cfg.Temperature = genai.Ptr(float32(t))
	}
	if p, ok := llm.FloatOption(g.options, "top_p"); ok {
		cfg.TopP = genai.Ptr(float32(p))
	}
	if m, ok := llm.FloatOption(g.options, "max_tokens"); ok && m > 0 {
		cfg.MaxOutputTokens = int32(m)
	}
	return cfg
}

// StreamChat implements llm.LLMClient.
func (g *GeminiClient) StreamChat(ctx context.Context, messages []llm.Message, tools []llm.Tool) (<-chan llm.StreamChunk, error) {
	contents, systemInstruction := convertMessages(messages)
	genaiTools := convertTools(tools)

	chunkCh := make(chan llm.StreamChunk, 100)
	startResultCh := make(chan error, 1)

	slog.DebugContext(ctx, "Gemini streaming", "model", g.model, "messages", len(contents), "tools", len(tools))

	go func() {
		defer close(chunkCh)

		debugger := llm.NewStreamDebugger(ctx, "gemini", g.debugEnabled)
		defer debugger.Close()

		iter := g.client.Models.GenerateContentStream(ctx, g.model, contents, g.generateConfig(systemInstruction, genaiTools))

		started := false
		var lastUsage *llm.LLMUsage
		finish := ""
		callSeq := 0

		for resp, err := range iter {
			if resp != nil {
				debugger.WriteJSON(resp)
			}
			if err != nil {
				if resp == nil {
					slog.ErrorContext(ctx, "Gemini stream error", "model", g.model, "error", err)
					if !started {
						startResultCh <- err
					} else {
						chunkCh <- llm.NewErrorChunk(fmt.Sprintf("stream interrupted: %v", err), err, true)
					}
					return
				}
				slog.WarnContext(ctx, "Gemini stream error with data", "error", err)
			}

			if !started {
				started = true
				startResultCh <- nil
			}

			if u := resp.UsageMetadata; u != nil {
				lastUsage = &llm.LLMUsage{
					PromptTokens:     int(u.PromptTokenCount),
					CompletionTokens: int(u.CandidatesTokenCount),
					TotalTokens:      int(u.TotalTokenCount),
					ThoughtsTokens:   int(u.ThoughtsTokenCount),
					CachedTokens:     int(u.CachedContentTokenCount),
				}
			}

			for _, candidate := range resp.Candidates {
				if candidate.FinishReason != "" {
					finish = normalizeFinishReason(candidate.FinishReason)
					if finish == llm.StopReasonLength {
						chunkCh <- llm.NewErrorChunk("response truncated by the max tokens limit", nil, false)
					}
				}
				if candidate.Content == nil {
					continue
				}

				chunk := convertParts(candidate.Content.Parts, &callSeq)
				if len(chunk.ContentBlocks) > 0 || len(chunk.ToolCalls) > 0 {
					chunkCh <- chunk
				}
			}
		}

		if !started {
			startResultCh <- nil
		}
		if finish == "" {
			finish = llm.StopReasonStop
		}
		if lastUsage != nil {
			lastUsage.StopReason = finish
		}
		chunkCh <- llm.NewFinalChunk(finish, lastUsage)
		llm.LogUsage(ctx, g.model, lastUsage)
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

// convertParts maps one candidate's parts to a stream chunk. Calls without
// a provider id get a sequential one so tool results can refer to them.
func convertParts(parts []*genai.Part, callSeq *int) llm.StreamChunk {
	var chunk llm.StreamChunk
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			if part.Thought {
				chunk.ContentBlocks = append(chunk.ContentBlocks, llm.NewThinkingBlock(part.Text))
			} else {
				chunk.ContentBlocks = append(chunk.ContentBlocks, llm.NewTextBlock(part.Text))
			}
		}

		if fc := part.FunctionCall; fc != nil {
			args, _ := json.Marshal(fc.Args)
			*callSeq++
			id := fc.ID
			if id == "" {
				id = fmt.Sprintf("gemini_call_%d", *callSeq)
			}
			chunk.ToolCalls = append(chunk.ToolCalls, llm.ToolCall{
				ID:   id,
				Name: fc.Name,
				Function: llm.FunctionCall{
					Name:      fc.Name,
					Arguments: string(args),
				},
				// The original call carries the thought signature that must be echoed.
				Meta: map[string]any{metaFunctionCall: fc},
			})
		}
	}
	return chunk
}

func normalizeFinishReason(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonStop:
		return llm.StopReasonStop
	case genai.FinishReasonMaxTokens:
		return llm.StopReasonLength
	default:
		return strings.ToLower(string(r))
	}
}

// convertTools declares tools as Gemini function declarations.
func convertTools(tools []llm.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	fds := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		fds = append(fds, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  toSchema(llm.ToolSchema(t)),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: fds}}
}

// toSchema converts a JSON Schema map into genai's typed schema.
func toSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	if enum, ok := m["enum"].([]string); ok {
		s.Enum = enum
	}
	return s
}

// convertMessages maps the conversation to Gemini contents. System
// messages become the system instruction.
func convertMessages(messages []llm.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			var parts []*genai.Part
			for _, block := range msg.Content {
				if block.Type == llm.BlockTypeText && block.Text != "" {
					parts = append(parts, &genai.Part{Text: block.Text})
				}
			}
			if len(parts) > 0 {
				systemInstruction = &genai.Content{Parts: parts}
			}
			continue

		case llm.RoleTool:
			key := "result"
			if msg.IsError {
				key = "error"
			}
			contents = append(contents, &genai.Content{
				Role: "user", // tool results travel in the user role
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     msg.ToolName,
						Response: map[string]any{key: msg.GetTextContent()},
					},
				}},
			})
			continue
		}

		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}

		var parts []*genai.Part
		for _, block := range msg.Content {
			if block.Text == "" {
				continue
			}
			switch block.Type {
			case llm.BlockTypeText:
				parts = append(parts, &genai.Part{Text: block.Text})
			case llm.BlockTypeThinking:
				parts = append(parts, &genai.Part{Text: block.Text, Thought: true})
			}
		}

		for _, tc := range msg.ToolCalls {
			if original, ok := tc.Meta[metaFunctionCall].(*genai.FunctionCall); ok {
				parts = append(parts, &genai.Part{FunctionCall: original})
				continue
			}
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Function.Name, Args: args},
			})
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}

	return contents, systemInstruction
}

// IsTransientError implements llm.LLMClient.
func (g *GeminiClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"503", "overloaded", "429", "resource exhausted", "500", "internal error"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
