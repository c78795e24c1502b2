package telegram

import (
	"fmt"
	"os"

	"taskmate/pkg/apperr"
	"taskmate/pkg/channels"
	"taskmate/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvBotToken is read when the config block carries no token.
const EnvBotToken = "TELEGRAM_BOT_TOKEN"

// TelegramFactory creates the Telegram bot front end.
type TelegramFactory struct{}

// Create implements channels.ChannelFactory.
func (f *TelegramFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (gateway.Channel, error) {
	var tgCfg TelegramConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &tgCfg); err != nil {
			return nil, fmt.Errorf("failed to parse telegram config: %w", err)
		}
	}
	if tgCfg.Disabled {
		return nil, nil
	}
	if tgCfg.Token == "" {
		tgCfg.Token = os.Getenv(EnvBotToken)
	}
	if tgCfg.Token == "" {
		return nil, &apperr.ConfigurationError{Field: EnvBotToken, Reason: "telegram channel enabled without a bot token"}
	}

	limit := 0
	if deps.System != nil {
		limit = deps.System.TelegramMessageLimit
	}
	ch, err := NewTelegramChannel(tgCfg, limit)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func init() {
	channels.RegisterChannel("telegram", &TelegramFactory{})
}
