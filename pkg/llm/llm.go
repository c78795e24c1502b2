package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LLMUsage is the normalized token accounting reported by providers.
type LLMUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	ThoughtsTokens   int    `json:"thoughts_tokens,omitempty"`
	CachedTokens     int    `json:"cached_tokens,omitempty"`
	StopReason       string `json:"stop_reason,omitempty"`
}

// Add accumulates other into u. Either side may be nil.
func (u *LLMUsage) Add(other *LLMUsage) *LLMUsage {
	if other == nil {
		return u
	}
	if u == nil {
		cp := *other
		return &cp
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.ThoughtsTokens += other.ThoughtsTokens
	u.CachedTokens += other.CachedTokens
	if other.StopReason != "" {
		u.StopReason = other.StopReason
	}
	return u
}

// LogUsage writes the usage of one model call at debug level.
func LogUsage(ctx context.Context, model string, usage *LLMUsage) {
	if usage == nil {
		return
	}
	slog.DebugContext(ctx, "LLM usage",
		"model", model,
		"prompt", usage.PromptTokens,
		"completion", usage.CompletionTokens,
		"thoughts", usage.ThoughtsTokens,
		"cached", usage.CachedTokens,
		"total", usage.TotalTokens,
		"stop", usage.StopReason,
	)
}

// LLMClient is the provider-neutral chat interface.
type LLMClient interface {
	// Provider names the backend, e.g. "gemini/gemini-2.5-flash".
	Provider() string

	// StreamChat sends the conversation and streams the response. A nil or
	// empty tools slice disables function calling for this call.
	StreamChat(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamChunk, error)

	// IsTransientError reports whether err is worth retrying (503, rate limit).
	IsTransientError(err error) bool
}

// FallbackClient tries each client in order, retrying transient failures.
type FallbackClient struct {
	Clients    []LLMClient
	MaxRetries int
	RetryDelay time.Duration
}

// Provider implements LLMClient.
func (f *FallbackClient) Provider() string {
	if len(f.Clients) == 0 {
		return "fallback"
	}
	return f.Clients[0].Provider()
}

// StreamChat implements LLMClient. Only the stream set-up is retried; once
// a stream is returned its errors are reported through the chunks.
func (f *FallbackClient) StreamChat(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamChunk, error) {
	if len(f.Clients) == 0 {
		return nil, errors.New("no LLM clients configured")
	}

	maxRetries := f.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for i, client := range f.Clients {
		if i > 0 {
			slog.WarnContext(ctx, "Previous provider failed, trying fallback", "index", i+1, "provider", client.Provider())
		}

		for attempt := 1; attempt <= maxRetries; attempt++ {
			if attempt > 1 {
				slog.InfoContext(ctx, "Retrying provider", "provider", client.Provider(), "attempt", attempt, "max", maxRetries)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(attempt-1) * f.RetryDelay):
				}
			}

			ch, err := client.StreamChat(ctx, messages, tools)
			if err == nil {
				return ch, nil
			}
			lastErr = err

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if client.IsTransientError(err) && attempt < maxRetries {
				slog.WarnContext(ctx, "Provider failed with transient error", "provider", client.Provider(), "error", err)
				continue
			}

			slog.ErrorContext(ctx, "Provider failed", "provider", client.Provider(), "error", err)
			break
		}
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// IsTransientError implements LLMClient. An error from the fallback chain
// means every child has already been tried.
func (f *FallbackClient) IsTransientError(err error) bool {
	return false
}

// CollectStream drains ch into a single assistant message. It returns the
// first fatal stream error, or ctx.Err() if the context ends first.
func CollectStream(ctx context.Context, ch <-chan StreamChunk) (Message, error) {
	msg := Message{Role: RoleAssistant}
	var text, thinking []byte

	for {
		select {
		case <-ctx.Done():
			return msg, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				msg.Content = buildBlocks(thinking, text)
				return msg, nil
			}

			if chunk.RawError != nil {
				return msg, chunk.RawError
			}
			if chunk.Error != "" {
				if chunk.IsFinal {
					return msg, errors.New(chunk.Error)
				}
				slog.WarnContext(ctx, "Stream reported a non-fatal error", "error", chunk.Error)
			}

			for _, b := range chunk.ContentBlocks {
				switch b.Type {
				case BlockTypeText:
					text = append(text, b.Text...)
				case BlockTypeThinking:
					thinking = append(thinking, b.Text...)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, chunk.ToolCalls...)
			if chunk.Usage != nil {
				msg.Usage = msg.Usage.Add(chunk.Usage)
			}
			if chunk.IsFinal && msg.Usage != nil && chunk.FinishReason != "" {
				msg.Usage.StopReason = chunk.FinishReason
			}
		}
	}
}

func buildBlocks(thinking, text []byte) []ContentBlock {
	var blocks []ContentBlock
	if len(thinking) > 0 {
		blocks = append(blocks, NewThinkingBlock(string(thinking)))
	}
	if len(text) > 0 {
		blocks = append(blocks, NewTextBlock(string(text)))
	}
	return blocks
}
