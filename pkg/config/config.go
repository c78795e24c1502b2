package config

import (
	"fmt"
	"os"
	"strings"

	"taskmate/pkg/apperr"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Environment variables that supply secrets.
const (
	EnvGeminiKey  = "GEMINI_API_KEY"
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvTodoistKey = "TODOIST_API_KEY"
)

// Default model settings used when config.json has no "llm" section.
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultTemperature = 0.2
)

// Config defines the application configuration (config.json).
// Secrets may be left empty here and supplied through the environment.
type Config struct {
	// Channels maps front-end identifiers ("web", "terminal", "telegram")
	// to their raw configuration payloads.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// LLM lists provider groups in fallback order.
	LLM []ProviderGroupConfig `json:"llm"`
	// Tasks configures the task-list backend.
	Tasks TasksConfig `json:"tasks"`
	// SystemPrompt overrides the built-in assistant instructions when set.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// ProviderGroupConfig describes one group of LLM clients. Each
// model/key combination becomes one client in the fallback chain.
type ProviderGroupConfig struct {
	Type    string         `json:"type"` // "gemini", "openai" or "ollama"
	APIKeys []string       `json:"api_keys,omitempty"`
	Models  []string       `json:"models"`
	BaseURL string         `json:"base_url,omitempty"`
	Options map[string]any `json:"options,omitempty"` // temperature, top_p, max_tokens
}

// TasksConfig selects and configures the task service.
type TasksConfig struct {
	Type     string `json:"type"` // "todoist" (default) or "memory"
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// SystemConfig defines engine-level parameters (system.json).
type SystemConfig struct {
	// MaxRetries is the number of attempts per LLM provider before
	// falling back to the next one. 1 means no retry.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the base delay between retry attempts.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs bounds one whole agent turn, tool calls included.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// MaxToolCalls is the number of tool invocations allowed per user turn.
	MaxToolCalls int `json:"max_tool_calls"`
	// HistoryWindow keeps only the last N exchanges in the prompt.
	// 0 resends the whole history.
	HistoryWindow int `json:"history_window"`
	// EnableTools toggles function calling globally.
	EnableTools bool `json:"enable_tools"`
	// ValidateToolArgs rejects tool calls whose arguments do not match the
	// declared schema before the handler runs.
	ValidateToolArgs bool `json:"validate_tool_args"`
	// DebugChunks writes every raw provider chunk under debug/chunks.
	DebugChunks bool `json:"debug_chunks"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"log_level"`
	// LogFile redirects logs to a file. Used by the terminal UI.
	LogFile string `json:"log_file,omitempty"`
	// TelegramMessageLimit is the maximum characters per Telegram message.
	TelegramMessageLimit int `json:"telegram_message_limit"`
	// TaskPanelTimeoutMs bounds the sidebar task refresh.
	TaskPanelTimeoutMs int `json:"task_panel_timeout_ms"`
}

// DefaultSystemConfig returns the fallback engine settings used when
// system.json is missing or unreadable.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:           1,
		RetryDelayMs:         500,
		LLMTimeoutMs:         120000,
		MaxToolCalls:         1,
		HistoryWindow:        0,
		EnableTools:          true,
		ValidateToolArgs:     true,
		LogLevel:             "info",
		TelegramMessageLimit: 4000,
		TaskPanelTimeoutMs:   10000,
	}
}

// DefaultConfig returns the configuration used when config.json is absent:
// Gemini for the LLM, Todoist for tasks, and the web front end.
func DefaultConfig() *Config {
	return &Config{
		Channels: map[string]jsoniter.RawMessage{"web": jsoniter.RawMessage(`{}`)},
		LLM: []ProviderGroupConfig{{
			Type:    "gemini",
			Models:  []string{DefaultGeminiModel},
			Options: map[string]any{"temperature": DefaultTemperature},
		}},
		Tasks: TasksConfig{Type: "todoist"},
	}
}

// Load reads the application config from path. A missing file falls back
// to DefaultConfig. Secrets are then filled from the environment (and an
// optional .env file) and the result is validated.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		loaded := &Config{}
		if err := json.Unmarshal(data, loaded); err != nil {
			return nil, &apperr.ConfigurationError{Field: path, Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
		mergeDefaults(loaded, cfg)
		cfg = loaded
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeDefaults(dst, defaults *Config) {
	if len(dst.LLM) == 0 {
		dst.LLM = defaults.LLM
	}
	if dst.Tasks.Type == "" {
		dst.Tasks.Type = defaults.Tasks.Type
	}
	if len(dst.Channels) == 0 {
		dst.Channels = defaults.Channels
	}
}

// ApplyEnv fills empty secrets from the environment lookup function.
// Values of the form "${NAME}" are expanded as well.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for i := range c.LLM {
		g := &c.LLM[i]
		for j, k := range g.APIKeys {
			g.APIKeys[j] = expand(k, getenv)
		}
		if len(nonEmpty(g.APIKeys)) > 0 {
			continue
		}
		var env string
		switch g.Type {
		case "gemini":
			env = getenv(EnvGeminiKey)
		case "openai":
			env = getenv(EnvOpenAIKey)
		}
		if env != "" {
			g.APIKeys = []string{env}
		}
	}

	c.Tasks.APIKey = expand(c.Tasks.APIKey, getenv)
	if c.Tasks.APIKey == "" {
		c.Tasks.APIKey = getenv(EnvTodoistKey)
	}
}

func expand(v string, getenv func(string) string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return getenv(v[2 : len(v)-1])
	}
	return v
}

func nonEmpty(keys []string) []string {
	var out []string
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Validate ensures that every required secret is present so the process
// fails at startup instead of on the first request.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return &apperr.ConfigurationError{Field: "llm", Reason: "at least one provider group is required"}
	}

	for i, g := range c.LLM {
		if len(g.Models) == 0 {
			return &apperr.ConfigurationError{Field: fmt.Sprintf("llm[%d].models", i), Reason: "no model configured"}
		}
		switch g.Type {
		case "gemini":
			if len(nonEmpty(g.APIKeys)) == 0 {
				return &apperr.ConfigurationError{Field: EnvGeminiKey, Reason: "Gemini API key is not set"}
			}
		case "openai":
			if len(nonEmpty(g.APIKeys)) == 0 && g.BaseURL == "" {
				return &apperr.ConfigurationError{Field: EnvOpenAIKey, Reason: "OpenAI API key is not set"}
			}
		case "ollama":
		default:
			return &apperr.ConfigurationError{Field: fmt.Sprintf("llm[%d].type", i), Reason: fmt.Sprintf("unknown provider %q", g.Type)}
		}
	}

	switch c.Tasks.Type {
	case "todoist":
		if c.Tasks.APIKey == "" {
			return &apperr.ConfigurationError{Field: EnvTodoistKey, Reason: "Todoist API key is not set"}
		}
	case "memory":
	default:
		return &apperr.ConfigurationError{Field: "tasks.type", Reason: fmt.Sprintf("unknown task backend %q", c.Tasks.Type)}
	}

	return nil
}

// LoadSystemConfig loads system settings from path, falling back to
// defaults for a missing or unparsable file. Fields absent from the file
// keep their default values.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return DefaultSystemConfig()
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.MaxToolCalls < 0 {
		cfg.MaxToolCalls = 0
	}
	return cfg
}
