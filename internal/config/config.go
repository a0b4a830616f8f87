package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "NEWSTACK_CONFIG"
	backendURLEnv     = "NEWSTACK_BACKEND_URL"
	backendKeyEnv     = "NEWSTACK_BACKEND_KEY"
	databaseDSNEnv    = "DATABASE_DSN"
	redisURLEnv       = "REDIS_URL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// Cooldown store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Backend       BackendConfig      `yaml:"backend"`
	Database      DatabaseConfig     `yaml:"database"`
	Cooldown      CooldownConfig     `yaml:"cooldown"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	UI            UIConfig           `yaml:"ui"`
	Notifications NotificationConfig `yaml:"notifications"`
	Server        ServerConfig       `yaml:"server"`
}

// LoggingConfig sets the slog level (debug, info, warn, error).
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// BackendConfig points at the hosted ingestion function.
type BackendConfig struct {
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"apiKey"`
	IngestFunction string        `yaml:"ingestFunction"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN
// disables preflight and story previews.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// CooldownConfig selects where run timestamps live and how long they block.
type CooldownConfig struct {
	Store     string        `yaml:"store"`
	Path      string        `yaml:"path"`
	RedisURL  string        `yaml:"redisUrl"`
	KeyPrefix string        `yaml:"keyPrefix"`
	Success   time.Duration `yaml:"success"`
	Failure   time.Duration `yaml:"failure"`
}

// PipelineConfig tunes the run controller.
type PipelineConfig struct {
	AutoRefreshInterval  *time.Duration `yaml:"autoRefreshInterval"`
	SimulateDelays       *bool          `yaml:"simulateDelays"`
	DefaultFetchInterval time.Duration  `yaml:"defaultFetchInterval"`
	RecentWindow         time.Duration  `yaml:"recentWindow"`
}

// AutoRefresh returns the timer period; zero disables the timer.
func (p PipelineConfig) AutoRefresh() time.Duration {
	if p.AutoRefreshInterval == nil {
		return 0
	}
	return *p.AutoRefreshInterval
}

// Simulate reports whether display steps are paced.
func (p PipelineConfig) Simulate() bool {
	return p.SimulateDelays != nil && *p.SimulateDelays
}

// UIConfig carries presentation flags echoed to clients.
type UIConfig struct {
	DefaultCollapsed        *bool `yaml:"defaultCollapsed"`
	ShowAutoRefreshControls *bool `yaml:"showAutoRefreshControls"`
}

// Collapsed reports whether the step list starts collapsed.
func (u UIConfig) Collapsed() bool {
	return u.DefaultCollapsed != nil && *u.DefaultCollapsed
}

// AutoRefreshControls reports whether the countdown controls are shown.
func (u UIConfig) AutoRefreshControls() bool {
	return u.ShowAutoRefreshControls != nil && *u.ShowAutoRefreshControls
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled is true when both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An empty path falls back to $NEWSTACK_CONFIG.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, errors.New("backend.timeout must not be negative"))
	}

	switch c.Cooldown.Store {
	case StoreMemory:
	case StoreFile:
		if c.Cooldown.Path == "" {
			errs = append(errs, errors.New("cooldown.path is required for the file store"))
		}
	case StoreRedis:
		if c.Cooldown.RedisURL == "" {
			errs = append(errs, errors.New("cooldown.redisUrl is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cooldown store %q", c.Cooldown.Store))
	}
	if c.Cooldown.Success < 0 || c.Cooldown.Failure < 0 {
		errs = append(errs, errors.New("cooldown windows must not be negative"))
	}

	if c.Pipeline.AutoRefresh() < 0 {
		errs = append(errs, errors.New("pipeline.autoRefreshInterval must not be negative"))
	}
	if c.Pipeline.DefaultFetchInterval < 0 || c.Pipeline.RecentWindow < 0 {
		errs = append(errs, errors.New("pipeline intervals must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(backendURLEnv); v != "" {
		c.Backend.URL = v
	}

	if v := os.Getenv(backendKeyEnv); v != "" {
		c.Backend.APIKey = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Cooldown.RedisURL = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Backend.URL != "" {
		base.Backend.URL = override.Backend.URL
	}
	if override.Backend.APIKey != "" {
		base.Backend.APIKey = override.Backend.APIKey
	}
	if override.Backend.IngestFunction != "" {
		base.Backend.IngestFunction = override.Backend.IngestFunction
	}
	if override.Backend.Timeout != 0 {
		base.Backend.Timeout = override.Backend.Timeout
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Cooldown.Store != "" {
		base.Cooldown.Store = override.Cooldown.Store
	}
	if override.Cooldown.Path != "" {
		base.Cooldown.Path = override.Cooldown.Path
	}
	if override.Cooldown.RedisURL != "" {
		base.Cooldown.RedisURL = override.Cooldown.RedisURL
	}
	if override.Cooldown.KeyPrefix != "" {
		base.Cooldown.KeyPrefix = override.Cooldown.KeyPrefix
	}
	if override.Cooldown.Success != 0 {
		base.Cooldown.Success = override.Cooldown.Success
	}
	if override.Cooldown.Failure != 0 {
		base.Cooldown.Failure = override.Cooldown.Failure
	}

	if override.Pipeline.AutoRefreshInterval != nil {
		base.Pipeline.AutoRefreshInterval = override.Pipeline.AutoRefreshInterval
	}
	if override.Pipeline.SimulateDelays != nil {
		base.Pipeline.SimulateDelays = override.Pipeline.SimulateDelays
	}
	if override.Pipeline.DefaultFetchInterval != 0 {
		base.Pipeline.DefaultFetchInterval = override.Pipeline.DefaultFetchInterval
	}
	if override.Pipeline.RecentWindow != 0 {
		base.Pipeline.RecentWindow = override.Pipeline.RecentWindow
	}

	if override.UI.DefaultCollapsed != nil {
		base.UI.DefaultCollapsed = override.UI.DefaultCollapsed
	}
	if override.UI.ShowAutoRefreshControls != nil {
		base.UI.ShowAutoRefreshControls = override.UI.ShowAutoRefreshControls
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Backend: BackendConfig{
			URL:            "http://localhost:54321",
			IngestFunction: "ingest-rss",
			Timeout:        60 * time.Second,
		},
		Cooldown: CooldownConfig{
			Store:     StoreFile,
			Path:      ".newstack/cooldown.json",
			KeyPrefix: "newstack:ingestion:",
			Success:   15 * time.Minute,
			Failure:   5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			AutoRefreshInterval:  ptr(15 * time.Minute),
			SimulateDelays:       ptr(true),
			DefaultFetchInterval: 15 * time.Minute,
			RecentWindow:         72 * time.Hour,
		},
		UI: UIConfig{
			DefaultCollapsed:        ptr(true),
			ShowAutoRefreshControls: ptr(true),
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

func ptr[T any](v T) *T {
	return &v
}
