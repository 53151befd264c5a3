// Package config provides configuration management for the dashboard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"neo-dashboard/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig   `mapstructure:"trading"`
	Watchlist   WatchlistConfig `mapstructure:"watchlist"`
	Stream      StreamConfig    `mapstructure:"stream"`
	UI          UIConfig        `mapstructure:"ui"`
	Credentials Credentials     `mapstructure:"-"` // Loaded separately
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	DefaultProduct string `mapstructure:"default_product"` // MIS, CNC, NRML
	DefaultSegment string `mapstructure:"default_segment"` // nse_cm, nse_fo, ...
}

// WatchlistConfig holds watchlist and search configuration.
type WatchlistConfig struct {
	SearchDebounceMS int  `mapstructure:"search_debounce_ms"`
	SearchLimit      int  `mapstructure:"search_limit"`
	AutoSave         bool `mapstructure:"auto_save"`
}

// StreamConfig holds streaming configuration.
type StreamConfig struct {
	URL               string `mapstructure:"url"`
	ReconnectAttempts int    `mapstructure:"reconnect_attempts"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
}

// Credentials holds API credentials.
type Credentials struct {
	Neo NeoCredentials `mapstructure:"neo"`
}

// NeoCredentials holds Kotak Neo API credentials.
type NeoCredentials struct {
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
	MobileNumber   string `mapstructure:"mobile_number"`
	UCC            string `mapstructure:"ucc"`
	MPIN           string `mapstructure:"mpin"`
	TOTPSecret     string `mapstructure:"totp_secret"` // For auto-login with 2FA
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/neo-dashboard"
	}
	return filepath.Join(home, ".config", "neo-dashboard")
}

// DefaultDBPath returns the default path of the local sqlite database.
func DefaultDBPath() string {
	return filepath.Join(DefaultConfigDir(), "neodash.db")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("trading.default_product", "MIS")
	v.SetDefault("trading.default_segment", string(models.NSECash))
	v.SetDefault("watchlist.search_debounce_ms", 500)
	v.SetDefault("watchlist.search_limit", 50)
	v.SetDefault("watchlist.auto_save", true)
	v.SetDefault("stream.reconnect_attempts", 5)
	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "02-Jan-2006")
	v.SetDefault("ui.time_format", "15:04:05")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			if err := createTemplateConfig(configDir); err != nil {
				return err
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NEO_CONSUMER_KEY"); v != "" {
		cfg.Credentials.Neo.ConsumerKey = v
	}
	if v := os.Getenv("NEO_CONSUMER_SECRET"); v != "" {
		cfg.Credentials.Neo.ConsumerSecret = v
	}
	if v := os.Getenv("NEO_MOBILE_NUMBER"); v != "" {
		cfg.Credentials.Neo.MobileNumber = v
	}
	if v := os.Getenv("NEO_UCC"); v != "" {
		cfg.Credentials.Neo.UCC = v
	}
	if v := os.Getenv("NEO_MPIN"); v != "" {
		cfg.Credentials.Neo.MPIN = v
	}
	if v := os.Getenv("NEO_TOTP_SECRET"); v != "" {
		cfg.Credentials.Neo.TOTPSecret = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Trading.DefaultProduct {
	case "", "MIS", "CNC", "NRML":
	default:
		return fmt.Errorf("invalid default_product: %s (must be MIS, CNC, or NRML)", c.Trading.DefaultProduct)
	}

	if c.Trading.DefaultSegment != "" {
		valid := false
		for _, seg := range models.Segments() {
			if string(seg) == c.Trading.DefaultSegment {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid default_segment: %s", c.Trading.DefaultSegment)
		}
	}

	if c.Watchlist.SearchDebounceMS < 0 {
		return fmt.Errorf("search_debounce_ms must be non-negative")
	}
	if c.Watchlist.SearchLimit < 1 {
		return fmt.Errorf("search_limit must be at least 1")
	}
	if c.Stream.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect_attempts must be non-negative")
	}

	return nil
}

// SearchDebounce returns the configured search debounce interval.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.Watchlist.SearchDebounceMS) * time.Millisecond
}

// DefaultSegment returns the configured default exchange segment.
func (c *Config) DefaultSegment() models.ExchangeSegment {
	if c.Trading.DefaultSegment == "" {
		return models.NSECash
	}
	return models.ExchangeSegment(c.Trading.DefaultSegment)
}
