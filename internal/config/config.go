// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	EntryPolicy     string  `mapstructure:"entry_policy"`
	DiscoveryDelay  int     `mapstructure:"discovery_delay"`
	WatchDelay      int     `mapstructure:"watch_delay"`
	TrackDelay      int     `mapstructure:"track_delay"`
	WarmupMinutes   int     `mapstructure:"warmup_minutes"`
	DeadlineMinutes int     `mapstructure:"deadline_minutes"`
	HoldMinutes     int     `mapstructure:"hold_minutes"`
	StartingBalance float64 `mapstructure:"starting_balance"`
	WalletFile      string  `mapstructure:"wallet_file"`
	AllowlistFile   string  `mapstructure:"allowlist_file"`
	PostgresURL     string  `mapstructure:"postgres_url"`
	TelegramToken   string  `mapstructure:"telegram_token"`
	TelegramChatID  int64   `mapstructure:"telegram_chat_id"`
	DebugLogging    bool    `mapstructure:"debug_logging"`
}

const (
	DefaultEntryPolicy     = "bollinger"
	DefaultDiscoveryDelay  = 10000 // ms
	DefaultWatchDelay      = 1000  // ms
	DefaultTrackDelay      = 10000 // ms
	DefaultWarmupMinutes   = 2
	DefaultDeadlineMinutes = 5
	DefaultHoldMinutes     = 10
	DefaultBalance         = 1000.0
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"entry_policy":     DefaultEntryPolicy,
		"discovery_delay":  DefaultDiscoveryDelay,
		"watch_delay":      DefaultWatchDelay,
		"track_delay":      DefaultTrackDelay,
		"warmup_minutes":   DefaultWarmupMinutes,
		"deadline_minutes": DefaultDeadlineMinutes,
		"hold_minutes":     DefaultHoldMinutes,
		"starting_balance": DefaultBalance,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	switch cfg.EntryPolicy {
	case "bollinger", "growth":
	default:
		return errors.New("entry_policy must be bollinger or growth")
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if cfg.PostgresURL != "" {
		if err := validateURL(cfg.PostgresURL, "postgres"); err != nil {
			return errors.New("invalid postgres URL")
		}
	}
	if (cfg.TelegramToken == "") != (cfg.TelegramChatID == 0) {
		return errors.New("telegram_token and telegram_chat_id must be set together")
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.DiscoveryDelay <= 0 {
		return errors.New("invalid discovery_delay")
	}
	if cfg.WatchDelay <= 0 {
		return errors.New("invalid watch_delay")
	}
	if cfg.TrackDelay <= 0 {
		return errors.New("invalid track_delay")
	}
	if cfg.WarmupMinutes < 0 || cfg.DeadlineMinutes <= 0 || cfg.WarmupMinutes >= cfg.DeadlineMinutes {
		return errors.New("warmup_minutes must be below deadline_minutes")
	}
	if cfg.HoldMinutes <= 0 {
		return errors.New("invalid hold_minutes")
	}
	if cfg.StartingBalance <= 0 {
		return errors.New("invalid starting_balance")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("KOTHWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if env := v.GetString("POSTGRES_URL"); env != "" {
		cfg.PostgresURL = env
	}
	if env := v.GetString("TELEGRAM_TOKEN"); env != "" {
		cfg.TelegramToken = env
	}
	if env := v.GetInt64("TELEGRAM_CHAT_ID"); env != 0 {
		cfg.TelegramChatID = env
	}
	if env := v.GetString("WALLET_FILE"); env != "" {
		cfg.WalletFile = env
	}
	return nil
}

// Duration accessors: delays are stored in milliseconds, windows in
// minutes, matching the config file units.

func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.DiscoveryDelay) * time.Millisecond
}

func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchDelay) * time.Millisecond
}

func (c *Config) TrackInterval() time.Duration {
	return time.Duration(c.TrackDelay) * time.Millisecond
}

func (c *Config) Warmup() time.Duration {
	return time.Duration(c.WarmupMinutes) * time.Minute
}

func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineMinutes) * time.Minute
}

func (c *Config) HoldLimit() time.Duration {
	return time.Duration(c.HoldMinutes) * time.Minute
}
