package channels

import (
	"fmt"
	"log/slog"
	"sort"

	"taskmate/pkg/apperr"
	"taskmate/pkg/config"
	"taskmate/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// LoadFromConfig creates the channels named in configs, in name order.
// Unknown names are skipped with a warning; a factory error aborts so
// that a misconfigured front end fails at startup.
func LoadFromConfig(configs map[string]jsoniter.RawMessage, deps Deps) ([]gateway.Channel, error) {
	if deps.System == nil {
		deps.System = config.DefaultSystemConfig()
	}

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []gateway.Channel
	for _, name := range names {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name, "known", RegisteredChannels())
			continue
		}

		channel, err := factory.Create(configs[name], deps)
		if err != nil {
			return nil, fmt.Errorf("create channel %s: %w", name, err)
		}
		// A factory may return nil when the channel is disabled.
		if channel == nil {
			continue
		}

		out = append(out, channel)
		slog.Info("Channel created", "name", name)
	}

	if len(out) == 0 {
		return nil, &apperr.ConfigurationError{Field: "channels", Reason: "no usable channel configured"}
	}
	return out, nil
}
