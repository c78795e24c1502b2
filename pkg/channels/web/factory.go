package web

import (
	"fmt"

	"taskmate/pkg/channels"
	"taskmate/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// DefaultPort is used when the config block omits "port".
const DefaultPort = 8080

// WebFactory creates the browser front end.
type WebFactory struct{}

// Create implements channels.ChannelFactory.
func (f *WebFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (gateway.Channel, error) {
	cfg := WebConfig{Port: DefaultPort}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse web config: %w", err)
		}
	}
	if cfg.Disabled {
		return nil, nil
	}
	return NewWebChannel(cfg, deps), nil
}

func init() {
	channels.RegisterChannel("web", &WebFactory{})
}
