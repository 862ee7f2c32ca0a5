package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ServerConfig holds connection settings for the CRM backend.
type ServerConfig struct {
	// BaseURL is the root URL of the CRM API (e.g. https://crm.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// UserID is the explicitly configured user id. When empty, the id is
	// resolved from the cached profile instead.
	UserID string `mapstructure:"user_id" yaml:"user_id"`
}

// PollConfig holds tuning knobs for the notification poller.
type PollConfig struct {
	// BaseIntervalMS is the normal poll interval in milliseconds.
	BaseIntervalMS int `mapstructure:"base_interval_ms" yaml:"base_interval_ms"`

	// MaxIntervalMS caps backoff growth.
	MaxIntervalMS int `mapstructure:"max_interval_ms" yaml:"max_interval_ms"`
}

// AudioConfig holds chime preferences. Volume is only the initial default;
// the runtime value lives in the local store so the settings form persists it.
type AudioConfig struct {
	Volume float64 `mapstructure:"volume" yaml:"volume"`
}

// LogConfig holds logging preferences. The TUI owns the terminal, so logs
// always go to a file.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Poll   PollConfig   `mapstructure:"poll" yaml:"poll"`
	Audio  AudioConfig  `mapstructure:"audio" yaml:"audio"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/popdesk/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "popdesk", "config.yaml")
}

// DefaultDataPath returns the default path for the local state database.
func DefaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "popdesk.db")
	}
	return filepath.Join(home, ".local", "share", "popdesk", "popdesk.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Poll: PollConfig{
			BaseIntervalMS: 3000,
			MaxIntervalMS:  10000,
		},
		Audio: AudioConfig{Volume: 0.3},
		Log:   LogConfig{Level: "info"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("poll.base_interval_ms", 3000)
	v.SetDefault("poll.max_interval_ms", 10000)
	v.SetDefault("audio.volume", 0.3)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Poll.BaseIntervalMS <= 0 {
		cfg.Poll.BaseIntervalMS = 3000
	}
	if cfg.Poll.MaxIntervalMS < cfg.Poll.BaseIntervalMS {
		cfg.Poll.MaxIntervalMS = 10000
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("poll", cfg.Poll)
	v.Set("audio", cfg.Audio)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
