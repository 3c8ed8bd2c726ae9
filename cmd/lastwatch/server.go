package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goodtune/lastwatch/internal/bot"
	"github.com/goodtune/lastwatch/internal/config"
	"github.com/goodtune/lastwatch/internal/lastfm"
	"github.com/goodtune/lastwatch/internal/metrics"
	"github.com/goodtune/lastwatch/internal/monitor"
	"github.com/goodtune/lastwatch/internal/notify"
	"github.com/goodtune/lastwatch/internal/storage"
	"github.com/goodtune/lastwatch/internal/storage/bolt"
	"github.com/goodtune/lastwatch/internal/storage/redis"
	"github.com/goodtune/lastwatch/internal/systemd"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Lastwatch monitor",
	Long:  `Start the Lastwatch monitor with the cron scheduler, the Telegram bot, and the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Lastwatch")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	// Root context; cancelled on shutdown so an in-flight cycle stops
	// between accounts.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Accounts: configuration overlaid with stored enable/disable overrides
	accounts := &accountSource{
		configured: cfg.Monitor.Accounts,
		settings:   store.Settings(),
		logger:     logger,
	}

	// Initialize Last.fm client
	fetcher := lastfm.NewClient(lastfm.Config{
		APIKey:    cfg.LastFM.APIKey,
		BaseURL:   cfg.LastFM.BaseURL,
		Timeout:   config.ParseDuration(cfg.LastFM.Timeout, lastfm.DefaultTimeout),
		RetryWait: config.ParseDuration(cfg.LastFM.RetryWait, lastfm.DefaultRetryWait),
	}, logger)

	// Initialize Activity Tracker
	policy, err := monitor.ParseAlertPolicy(cfg.Monitor.AlertPolicy)
	if err != nil {
		return err
	}
	tracker := monitor.NewTracker(
		time.Duration(cfg.Monitor.ThresholdMinutes)*time.Minute,
		policy,
		logger,
	)

	logger.Info().
		Int("threshold_minutes", cfg.Monitor.ThresholdMinutes).
		Int("accounts", len(cfg.Monitor.Accounts)).
		Msg("Activity tracker initialized")

	// Initialize notification sink
	var sink monitor.Sink = notify.LogSink{Logger: logger}
	var api *tgbotapi.BotAPI
	if cfg.Telegram.Enabled {
		api, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to connect to Telegram: %w", err)
		}
		logger.Info().Str("username", api.Self.UserName).Msg("Telegram bot authorized")

		sink = notify.NewTelegram(api, &chatSource{
			settings: store.Settings(),
			fallback: cfg.Telegram.ChatID,
		}, logger)
	}

	// Initialize Cycle Coordinator
	coordinator := monitor.NewCoordinator(
		monitor.Config{
			RequestSpacing: config.ParseDuration(cfg.Monitor.RequestSpacing, monitor.DefaultRequestSpacing),
		},
		fetcher,
		tracker,
		sink,
		accounts,
		logger,
	)

	// Start the Telegram command layer
	if api != nil {
		commandBot := bot.New(api, store.Settings(), coordinator, tracker, accounts, bot.Config{
			ThresholdMinutes: cfg.Monitor.ThresholdMinutes,
			Schedule:         cfg.Monitor.Schedule,
		}, logger)
		go commandBot.Run(ctx)
	}

	// Start Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().Str("addr", metricsAddr).Msg("Metrics server started")

	// Start the scheduler
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Monitor.Schedule, func() {
		coordinator.RunScheduled(ctx)
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Monitor.Schedule, err)
	}
	scheduler.Start()

	logger.Info().Str("schedule", cfg.Monitor.Schedule).Msg("Scheduler started")

	// Run the first cycle immediately on startup
	go coordinator.RunScheduled(ctx)

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("systemd readiness notification failed")
	}

	logger.Info().Msg("Lastwatch startup complete")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("systemd stopping notification failed")
	}

	cancel()

	// Wait for any in-flight scheduled job to finish aborting.
	<-scheduler.Stop().Done()

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("Lastwatch stopped")
	return nil
}

// openStorage opens the configured storage backend.
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return bolt.Open(cfg.Path)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// accountSource overlays the configured account list with the enable/disable
// overrides stored by the bot, so toggles take effect on the next cycle.
type accountSource struct {
	configured []config.AccountConfig
	settings   storage.SettingsStore
	logger     zerolog.Logger
}

func (s *accountSource) Accounts() []monitor.Account {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	overrides, err := s.settings.AccountOverrides(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load account overrides, using configured flags")
		overrides = nil
	}

	out := make([]monitor.Account, 0, len(s.configured))
	for _, acct := range s.configured {
		enabled := acct.IsEnabled()
		if override, ok := overrides[acct.Username]; ok {
			enabled = override
		}
		out = append(out, monitor.Account{
			Username:   acct.Username,
			ProfileURL: acct.ProfileURL,
			Enabled:    enabled,
		})
	}
	return out
}

// chatSource resolves the notification chat: the id captured via /start wins,
// the configured id is the fallback.
type chatSource struct {
	settings storage.SettingsStore
	fallback int64
}

func (s *chatSource) ChatID() (int64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if id, err := s.settings.ChatID(ctx); err == nil && id != 0 {
		return id, true
	}
	if s.fallback != 0 {
		return s.fallback, true
	}
	return 0, false
}
