package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"taskmate/pkg/api"
	"taskmate/pkg/httpkit"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const channelID = "telegram"

// MaxMessageLength is Telegram's hard limit per message.
const MaxMessageLength = 4096

type TelegramConfig struct {
	Token string `json:"token"`
	// Endpoint overrides tgbotapi.APIEndpoint, e.g. for a local Bot API server.
	Endpoint string `json:"endpoint"`
	// AllowedChats restricts the bot to these chat ids when set.
	AllowedChats []int64 `json:"allowed_chats"`
	// PollTimeoutSec is the long-poll timeout passed to getUpdates.
	PollTimeoutSec int  `json:"poll_timeout_sec"`
	Disabled       bool `json:"disabled"`
}

// TelegramChannel is a long-polling bot. Each chat is its own session.
type TelegramChannel struct {
	config       TelegramConfig
	bot          *tgbotapi.BotAPI
	messageLimit int
	allowed      map[int64]bool
	stopCtx      context.Context
	stopCancel   context.CancelFunc
	done         chan struct{}
}

// NewTelegramChannel authorises the bot with getMe.
func NewTelegramChannel(cfg TelegramConfig, msgLimit int) (*TelegramChannel, error) {
	if msgLimit <= 0 || msgLimit > MaxMessageLength {
		msgLimit = MaxMessageLength
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.PollTimeoutSec <= 0 {
		cfg.PollTimeoutSec = 60
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Requests are aborted on Stop so a restarted bot does not hit a 409 conflict.
	client := httpkit.NewClient(
		httpkit.WithStopContext(ctx),
		httpkit.WithTimeout(time.Duration(cfg.PollTimeoutSec+10)*time.Second),
		httpkit.WithRetry(2, time.Second),
	)

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, client)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	allowed := make(map[int64]bool, len(cfg.AllowedChats))
	for _, id := range cfg.AllowedChats {
		allowed[id] = true
	}

	return &TelegramChannel{
		config:       cfg,
		bot:          bot,
		messageLimit: msgLimit,
		allowed:      allowed,
		stopCtx:      ctx,
		stopCancel:   cancel,
		done:         make(chan struct{}),
	}, nil
}

func (t *TelegramChannel) ID() string {
	return channelID
}

// Start runs the update loop in the background.
func (t *TelegramChannel) Start(ctx api.ChannelContext) error {
	go t.poll(ctx)
	return nil
}

func (t *TelegramChannel) poll(ctx api.ChannelContext) {
	defer close(t.done)
	offset := 0

	for {
		select {
		case <-t.stopCtx.Done():
			return
		default:
		}

		req := tgbotapi.NewUpdate(offset)
		req.Timeout = t.config.PollTimeoutSec
		req.AllowedUpdates = []string{"message"}

		updates, err := t.bot.GetUpdates(req)
		if err != nil {
			select {
			case <-t.stopCtx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			slog.Debug("Failed to get telegram updates", "error", err)
			continue
		}

		for _, update := range updates {
			if update.UpdateID < offset {
				continue
			}
			offset = update.UpdateID + 1

			if msg := t.toUnified(update.Message); msg != nil {
				ctx.OnMessage(t.ID(), msg)
			}
		}
	}
}

// toUnified maps a Telegram message to a gateway message, or nil when the
// message should be ignored.
func (t *TelegramChannel) toUnified(m *tgbotapi.Message) *api.UnifiedMessage {
	if m == nil || m.Chat == nil {
		return nil
	}
	if len(t.allowed) > 0 && !t.allowed[m.Chat.ID] {
		slog.Warn("Ignoring message from unlisted chat", "chat", m.Chat.ID)
		return nil
	}

	content := strings.TrimSpace(m.Text)
	if content == "" {
		return nil
	}
	if m.IsCommand() {
		content = normalizeCommand(m.Command(), m.CommandArguments())
	}

	sc := api.SessionContext{
		ChannelID: channelID,
		SessionID: strconv.FormatInt(m.Chat.ID, 10),
	}
	if m.From != nil {
		sc.UserID = strconv.FormatInt(m.From.ID, 10)
		sc.Username = m.From.UserName
	}
	return &api.UnifiedMessage{Session: sc, Content: content}
}

// normalizeCommand drops the @botname suffix Telegram adds in groups and
// maps /start to /help.
func normalizeCommand(cmd, args string) string {
	if cmd == "start" {
		cmd = "help"
	}
	out := "/" + cmd
	if args != "" {
		out += " " + args
	}
	return out
}

// Stop ends the update loop and aborts the pending long poll.
func (t *TelegramChannel) Stop() error {
	t.stopCancel()
	select {
	case <-t.done:
	case <-time.After(5 * time.Second):
		slog.Warn("Telegram poller did not stop in time")
	}
	return nil
}

func chatID(sc api.SessionContext) (int64, error) {
	id, err := strconv.ParseInt(sc.SessionID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id for telegram: %q", sc.SessionID)
	}
	return id, nil
}

// Send implements api.Channel. Long replies are split into several messages.
func (t *TelegramChannel) Send(sc api.SessionContext, message string) error {
	id, err := chatID(sc)
	if err != nil {
		return err
	}

	for i, part := range SplitMessage(message, t.messageLimit) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(id, part)); err != nil {
			return fmt.Errorf("telegram send part %d failed: %w", i, err)
		}
	}
	return nil
}

// SendSignal implements api.SignalingChannel. Only "thinking" is shown, as
// the typing indicator.
func (t *TelegramChannel) SendSignal(sc api.SessionContext, signal string) error {
	if signal != api.SignalThinking {
		return nil
	}
	id, err := chatID(sc)
	if err != nil {
		return err
	}
	_, err = t.bot.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping))
	return err
}

// SplitMessage cuts text into parts of at most limit runes, preferring to
// break after a newline in the second half of a part.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i >= limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
