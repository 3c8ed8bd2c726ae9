package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LastFM   LastFMConfig   `mapstructure:"lastfm"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig defines the metrics endpoint address
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// LastFMConfig defines Last.fm API access
type LastFMConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Timeout   string `mapstructure:"timeout"`
	RetryWait string `mapstructure:"retry_wait"`
}

// TelegramConfig defines the notification destination
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"` // optional; /start captures it at runtime
}

// AccountConfig is one monitored Last.fm account. Enabled is a pointer so an
// omitted key means enabled; only an explicit "enabled: false" disables.
type AccountConfig struct {
	Username   string `mapstructure:"username"`
	ProfileURL string `mapstructure:"profile_url"`
	Enabled    *bool  `mapstructure:"enabled"`
}

// IsEnabled reports the effective enabled flag.
func (a AccountConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// MonitorConfig defines the polling behavior
type MonitorConfig struct {
	ThresholdMinutes int             `mapstructure:"threshold_minutes"`
	Schedule         string          `mapstructure:"schedule"` // cron expression
	RequestSpacing   string          `mapstructure:"request_spacing"`
	AlertPolicy      string          `mapstructure:"alert_policy"` // "every-cycle" or "edge"
	Accounts         []AccountConfig `mapstructure:"accounts"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("LASTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.metrics_port", 9090)

	// Last.fm defaults
	v.SetDefault("lastfm.base_url", "https://ws.audioscrobbler.com/2.0/")
	v.SetDefault("lastfm.timeout", "10s")
	v.SetDefault("lastfm.retry_wait", "300ms")

	// Telegram defaults
	v.SetDefault("telegram.enabled", true)

	// Monitor defaults
	v.SetDefault("monitor.threshold_minutes", 30)
	v.SetDefault("monitor.schedule", "*/10 * * * *")
	v.SetDefault("monitor.request_spacing", "1s")
	v.SetDefault("monitor.alert_policy", "every-cycle")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/lastwatch/lastwatch.bolt")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.LastFM.APIKey == "" {
		return fmt.Errorf("lastfm.api_key is required")
	}
	if _, err := time.ParseDuration(cfg.LastFM.Timeout); err != nil {
		return fmt.Errorf("invalid lastfm.timeout: %w", err)
	}
	if _, err := time.ParseDuration(cfg.LastFM.RetryWait); err != nil {
		return fmt.Errorf("invalid lastfm.retry_wait: %w", err)
	}

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}

	if cfg.Monitor.ThresholdMinutes <= 0 {
		return fmt.Errorf("monitor.threshold_minutes must be positive, got %d", cfg.Monitor.ThresholdMinutes)
	}
	if _, err := cron.ParseStandard(cfg.Monitor.Schedule); err != nil {
		return fmt.Errorf("invalid monitor.schedule %q: %w", cfg.Monitor.Schedule, err)
	}
	if _, err := time.ParseDuration(cfg.Monitor.RequestSpacing); err != nil {
		return fmt.Errorf("invalid monitor.request_spacing: %w", err)
	}
	switch strings.ToLower(cfg.Monitor.AlertPolicy) {
	case "", "every-cycle", "edge":
	default:
		return fmt.Errorf("invalid monitor.alert_policy: %s (must be every-cycle or edge)", cfg.Monitor.AlertPolicy)
	}

	seen := make(map[string]bool, len(cfg.Monitor.Accounts))
	for _, acct := range cfg.Monitor.Accounts {
		if acct.Username == "" {
			return fmt.Errorf("monitor.accounts entries must have a username")
		}
		if seen[acct.Username] {
			return fmt.Errorf("duplicate account username: %s", acct.Username)
		}
		seen[acct.Username] = true
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for bolt storage")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required for redis storage")
		}
	default:
		return fmt.Errorf("invalid storage.type: %s (must be bolt or redis)", cfg.Storage.Type)
	}

	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	return nil
}

// ParseDuration parses a duration string with a fallback.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
