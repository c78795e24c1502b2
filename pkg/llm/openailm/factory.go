package openailm

import (
	"taskmate/pkg/config"
	"taskmate/pkg/llm"
)

// OpenAIFactory builds one client per configured model.
type OpenAIFactory struct{}

// Create implements llm.ProviderFactory.
func (f *OpenAIFactory) Create(cfg config.ProviderGroupConfig, sys *config.SystemConfig) ([]llm.LLMClient, error) {
	apiKey := ""
	if len(cfg.APIKeys) > 0 {
		apiKey = cfg.APIKeys[0]
	}

	var clients []llm.LLMClient
	for _, model := range cfg.Models {
		client := NewClient("openai", apiKey, model, cfg.BaseURL, cfg.Options)
		client.SetDebug(sys != nil && sys.DebugChunks)
		clients = append(clients, client)
	}
	return clients, nil
}

func init() {
	llm.RegisterProvider("openai", &OpenAIFactory{})
}
