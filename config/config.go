// Package config loads the bot configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted for store_backend.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	TelegramToken    string `yaml:"telegram_token"`
	ChatID           int64  `yaml:"chat_id"`
	BaseURL          string `yaml:"base_url"`
	StoreBackend     string `yaml:"store_backend"`
	StorePath        string `yaml:"store_path"`
	RetentionDays    int    `yaml:"retention_days"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
	RunTime          string `yaml:"run_time"`
	Timezone         string `yaml:"timezone"`
	LogLevel         string `yaml:"log_level"`
}

// runTimeRegex validates HH:MM format with proper ranges.
var runTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Load reads configuration from a YAML file and applies defaults and
// environment overrides. A missing file is not an error: the bot can run
// entirely from environment variables, like its cron-driven deployments do.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("NEWSBOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// FetchTimeout returns the article fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// Retention returns the tracking retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://english.newsfirst.lk"
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendJSON
	}
	if cfg.StorePath == "" {
		if cfg.StoreBackend == BackendSQLite {
			cfg.StorePath = "./sent_articles.db"
		} else {
			cfg.StorePath = "./sent_articles.json"
		}
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 7
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 15
	}
	if cfg.RunTime == "" {
		cfg.RunTime = "08:00"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.ChatID = id
		}
	}
	if storePath := os.Getenv("NEWSBOT_STORE"); storePath != "" {
		cfg.StorePath = storePath
	}
}

func validate(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required (or set TELEGRAM_BOT_TOKEN)")
	}
	if cfg.ChatID == 0 {
		return fmt.Errorf("chat_id is required (or set TELEGRAM_CHAT_ID)")
	}
	if cfg.StoreBackend != BackendJSON && cfg.StoreBackend != BackendSQLite {
		return fmt.Errorf("store_backend must be %q or %q, got %q", BackendJSON, BackendSQLite, cfg.StoreBackend)
	}
	if cfg.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be positive, got %d", cfg.RetentionDays)
	}
	if !runTimeRegex.MatchString(cfg.RunTime) {
		return fmt.Errorf("run_time must be in HH:MM format (00:00-23:59), got %q", cfg.RunTime)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	return nil
}
