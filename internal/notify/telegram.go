package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goodtune/lastwatch/internal/monitor"
	"github.com/rs/zerolog"
)

// ErrNoChat means no destination chat has been captured or configured yet.
var ErrNoChat = errors.New("notify: no chat configured, send /start to the bot first")

// ChatSource resolves the destination chat id. The id may be fixed in
// configuration or captured at runtime through the bot's /start command.
type ChatSource interface {
	ChatID() (int64, bool)
}

// Telegram delivers cycle outcomes to a single Telegram chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chats  ChatSource
	logger zerolog.Logger
}

// NewTelegram creates a Telegram sink.
func NewTelegram(api *tgbotapi.BotAPI, chats ChatSource, logger zerolog.Logger) *Telegram {
	return &Telegram{
		api:    api,
		chats:  chats,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Alert sends the rendered batch. An empty batch is a no-op.
func (t *Telegram) Alert(_ context.Context, entries []monitor.Entry) error {
	text, ok := FormatBatch(entries)
	if !ok {
		return nil
	}
	return t.send(text)
}

// AllClear acknowledges a manual cycle with nothing to report.
func (t *Telegram) AllClear(_ context.Context) error {
	return t.send(AllClearMessage)
}

func (t *Telegram) send(text string) error {
	id, ok := t.chats.ChatID()
	if !ok {
		return ErrNoChat
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.logger.Debug().Int64("chat_id", id).Msg("Notification sent")
	return nil
}

// LogSink is a monitor.Sink that only logs. It stands in for Telegram when
// notifications are disabled in configuration.
type LogSink struct {
	Logger zerolog.Logger
}

// Alert logs the rendered batch.
func (s LogSink) Alert(_ context.Context, entries []monitor.Entry) error {
	text, ok := FormatBatch(entries)
	if !ok {
		return nil
	}
	s.Logger.Warn().Int("entries", len(entries)).Msg(text)
	return nil
}

// AllClear logs the all-clear acknowledgement.
func (s LogSink) AllClear(_ context.Context) error {
	s.Logger.Info().Msg(AllClearMessage)
	return nil
}
