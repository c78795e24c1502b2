package gemini

import (
	"context"

	"taskmate/pkg/config"
	"taskmate/pkg/llm"
)

// GeminiFactory builds Gemini clients for each model/key pair.
type GeminiFactory struct{}

// Create implements llm.ProviderFactory. Models take priority over keys in
// the fallback order.
func (f *GeminiFactory) Create(cfg config.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.LLMClient, error) {
	useThought := false
	if effort, ok := cfg.Options["thinking_effort"].(string); ok && effort != "" && effort != "off" {
		useThought = true
	}

	var clients []llm.LLMClient
	for _, model := range cfg.Models {
		for _, key := range cfg.APIKeys {
			if key == "" {
				continue
			}
			client, err := NewGeminiClient(context.Background(), key, model, useThought, cfg.Options)
			if err != nil {
				return nil, err
			}
			client.SetDebug(sys != nil && sys.DebugChunks)
			clients = append(clients, client)
		}
	}
	return clients, nil
}

func init() {
	llm.RegisterProvider("gemini", &GeminiFactory{})
}
