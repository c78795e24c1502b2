package llm

import (
	"fmt"
	"log/slog"
	"time"

	"taskmate/pkg/apperr"
	"taskmate/pkg/config"
)

// NewFromConfig creates the LLM client described by the provider groups.
// Several clients, or a retry budget above one, are wrapped in a FallbackClient.
func NewFromConfig(groups []config.ProviderGroupConfig, system *config.SystemConfig) (LLMClient, error) {
	if len(groups) == 0 {
		return nil, &apperr.ConfigurationError{Field: "llm", Reason: "missing provider configuration"}
	}
	if system == nil {
		system = config.DefaultSystemConfig()
	}

	var all []LLMClient
	for _, group := range groups {
		slog.Info("Loading LLM group", "type", group.Type, "models", len(group.Models))

		factory, ok := GetProviderFactory(group.Type)
		if !ok {
			slog.Warn("Unknown provider type", "type", group.Type, "known", RegisteredProviders())
			continue
		}

		clients, err := factory.Create(group, system)
		if err != nil {
			slog.Warn("Failed to create clients", "type", group.Type, "error", err)
			continue
		}
		all = append(all, clients...)
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no LLM clients could be initialized")
	}

	slog.Info("LLM clients initialized", "count", len(all))

	if len(all) == 1 && system.MaxRetries <= 1 {
		return all[0], nil
	}

	return &FallbackClient{
		Clients:    all,
		MaxRetries: system.MaxRetries,
		RetryDelay: time.Duration(system.RetryDelayMs) * time.Millisecond,
	}, nil
}

// FloatOption reads a numeric option that may have been decoded from JSON.
func FloatOption(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
