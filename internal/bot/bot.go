package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goodtune/lastwatch/internal/monitor"
	"github.com/goodtune/lastwatch/internal/storage"
	"github.com/rs/zerolog"
)

// Callback data values for the inline keyboard.
const (
	cbStart  = "start"
	cbMenu   = "menu"
	cbStatus = "status"
	cbCheck  = "check"
	cbToggle = "toggle:"
)

// Config holds the values the menu displays.
type Config struct {
	ThresholdMinutes int
	Schedule         string
}

// Bot is the operator-facing Telegram command layer: it captures the
// destination chat id, shows account status, and triggers manual checks.
type Bot struct {
	api      *tgbotapi.BotAPI
	settings storage.SettingsStore
	coord    *monitor.Coordinator
	tracker  *monitor.Tracker
	accounts monitor.AccountSource
	cfg      Config
	logger   zerolog.Logger
}

// New creates the bot layer.
func New(api *tgbotapi.BotAPI, settings storage.SettingsStore, coord *monitor.Coordinator, tracker *monitor.Tracker, accounts monitor.AccountSource, cfg Config, logger zerolog.Logger) *Bot {
	return &Bot{
		api:      api,
		settings: settings,
		coord:    coord,
		tracker:  tracker,
		accounts: accounts,
		cfg:      cfg,
		logger:   logger.With().Str("component", "bot").Logger(),
	}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	b.logger.Info().Str("username", b.api.Self.UserName).Msg("Bot update loop started")

	for update := range updates {
		switch {
		case update.Message != nil:
			b.handleMessage(ctx, update.Message)
		case update.CallbackQuery != nil:
			b.handleCallback(ctx, update.CallbackQuery)
		}
	}

	b.logger.Info().Msg("Bot update loop stopped")
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Text {
	case "/start", "/menu":
		b.captureChat(ctx, msg.Chat.ID)
		b.sendMainMenu(msg.Chat.ID)
	default:
		b.sendWelcome(msg.Chat.ID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to answer callback query")
	}
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	switch {
	case query.Data == cbStart:
		b.captureChat(ctx, chatID)
		b.sendMainMenu(chatID)
	case query.Data == cbMenu:
		b.sendMainMenu(chatID)
	case query.Data == cbStatus:
		b.sendStatus(chatID)
	case query.Data == cbCheck:
		b.runManualCheck(ctx, chatID)
	case strings.HasPrefix(query.Data, cbToggle):
		b.toggleAccount(ctx, chatID, strings.TrimPrefix(query.Data, cbToggle))
	}
}

// captureChat records the chat as the notification destination, the way the
// operator binds the bot to a chat without editing configuration.
func (b *Bot) captureChat(ctx context.Context, chatID int64) {
	if err := b.settings.SetChatID(ctx, chatID); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to store chat id")
		return
	}
	b.logger.Info().Int64("chat_id", chatID).Msg("Notification chat captured")
}

func (b *Bot) sendWelcome(chatID int64) {
	text := "🎵 Hi! I am the Last.fm activity monitor.\n\n" +
		"I watch the configured Last.fm accounts and report the ones that go quiet.\n\n" +
		"Press START to begin:"

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚀 START", cbStart),
		),
	)
	b.send(chatID, text, &keyboard)
}

func (b *Bot) sendMainMenu(chatID int64) {
	accounts := b.accounts.Accounts()

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎵 Last.fm Monitor\n\n📊 Monitoring %d accounts:\n", len(accounts))
	for _, acct := range accounts {
		if acct.Enabled {
			fmt.Fprintf(&sb, "• %s\n", acct.Username)
		} else {
			fmt.Fprintf(&sb, "• %s (disabled)\n", acct.Username)
		}
	}
	fmt.Fprintf(&sb, "\n⏰ Schedule: %s\n", b.cfg.Schedule)
	fmt.Fprintf(&sb, "⏱️ Inactivity threshold: %d minutes", b.cfg.ThresholdMinutes)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Status", cbStatus),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Check now", cbCheck),
		),
	)
	b.send(chatID, sb.String(), &keyboard)
}

func (b *Bot) sendStatus(chatID int64) {
	accounts := b.accounts.Accounts()
	statuses := b.tracker.Snapshot()

	var sb strings.Builder
	sb.WriteString("📊 Account status:\n\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, acct := range accounts {
		sb.WriteString(statusLine(acct, statuses))
		sb.WriteString("\n")

		label := "⏸ Disable " + acct.Username
		if !acct.Enabled {
			label = "▶️ Enable " + acct.Username
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbToggle+acct.Username),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📊 Refresh", cbStatus),
		tgbotapi.NewInlineKeyboardButtonData("🏠 Main menu", cbMenu),
	))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(chatID, sb.String(), &keyboard)
}

func statusLine(acct monitor.Account, statuses map[string]monitor.Status) string {
	if !acct.Enabled {
		return fmt.Sprintf("⏸ %s: disabled", acct.Username)
	}
	status, ok := statuses[acct.Username]
	if !ok {
		return fmt.Sprintf("⏳ %s: not checked yet", acct.Username)
	}
	switch status {
	case monitor.StatusActive:
		return fmt.Sprintf("✅ %s: active", acct.Username)
	case monitor.StatusInactive:
		return fmt.Sprintf("❌ %s: inactive", acct.Username)
	default:
		return fmt.Sprintf("❓ %s: no data (API error)", acct.Username)
	}
}

// runManualCheck triggers a cycle. The coordinator dispatches the alert batch
// or the all-clear through the notification sink, so only failures are
// reported here.
func (b *Bot) runManualCheck(ctx context.Context, chatID int64) {
	b.send(chatID, "🔄 Running check...", nil)

	if _, err := b.coord.RunManual(ctx); err != nil {
		b.logger.Error().Err(err).Msg("Manual check failed")
		b.send(chatID, "❌ Check failed, see server logs", nil)
	}
}

func (b *Bot) toggleAccount(ctx context.Context, chatID int64, username string) {
	for _, acct := range b.accounts.Accounts() {
		if acct.Username != username {
			continue
		}
		if err := b.settings.SetAccountEnabled(ctx, username, !acct.Enabled); err != nil {
			b.logger.Error().Err(err).Str("user", username).Msg("Failed to store account override")
			return
		}
		b.sendStatus(chatID)
		return
	}
	b.logger.Warn().Str("user", username).Msg("Toggle requested for unknown account")
}

func (b *Bot) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}
