package terminal

import (
	"fmt"

	"taskmate/pkg/channels"
	"taskmate/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type TerminalFactory struct{}

// Create implements channels.ChannelFactory.
func (f *TerminalFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (gateway.Channel, error) {
	var cfg TerminalConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse terminal config: %w", err)
		}
	}
	if cfg.Disabled {
		return nil, nil
	}
	return NewTerminalChannel(cfg, deps), nil
}

func init() {
	channels.RegisterChannel("terminal", &TerminalFactory{})
}
