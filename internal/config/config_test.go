package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "newstack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	for _, env := range []string{logLevelEnv, telegramTokenEnv, telegramChatIDEnv, backendURLEnv} {
		t.Setenv(env, "")
	}

	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "ingest-rss", cfg.Backend.IngestFunction)
	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, StoreFile, cfg.Cooldown.Store)
	assert.Equal(t, 15*time.Minute, cfg.Cooldown.Success)
	assert.Equal(t, 5*time.Minute, cfg.Cooldown.Failure)
	assert.Equal(t, 15*time.Minute, cfg.Pipeline.AutoRefresh())
	assert.True(t, cfg.Pipeline.Simulate())
	assert.True(t, cfg.UI.Collapsed())
	assert.True(t, cfg.UI.AutoRefreshControls())
	assert.False(t, cfg.Notifications.Telegram.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFile(t *testing.T) {
	t.Setenv(backendURLEnv, "")
	path := writeConfig(t, `
backend:
  url: https://project.example.co
  timeout: 30s
cooldown:
  store: redis
  redisUrl: redis://localhost:6379/0
  failure: 10m
pipeline:
  autoRefreshInterval: 0s
  simulateDelays: false
ui:
  defaultCollapsed: false
`)

	cfg := Load(path)

	assert.Equal(t, "https://project.example.co", cfg.Backend.URL)
	assert.Equal(t, "ingest-rss", cfg.Backend.IngestFunction)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, StoreRedis, cfg.Cooldown.Store)
	assert.Equal(t, 15*time.Minute, cfg.Cooldown.Success)
	assert.Equal(t, 10*time.Minute, cfg.Cooldown.Failure)
	assert.Zero(t, cfg.Pipeline.AutoRefresh())
	assert.False(t, cfg.Pipeline.Simulate())
	assert.False(t, cfg.UI.Collapsed())
	assert.True(t, cfg.UI.AutoRefreshControls())
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "backend:\n  url: https://from-file.example\n")
	t.Setenv(configPathEnv, path)
	t.Setenv(backendURLEnv, "https://from-env.example")
	t.Setenv(backendKeyEnv, "anon-key")
	t.Setenv(databaseDSNEnv, "postgres://u:p@db:5432/news")
	t.Setenv(redisURLEnv, "redis://cache:6379")
	t.Setenv(telegramTokenEnv, "token")
	t.Setenv(telegramChatIDEnv, "chat")
	t.Setenv(logLevelEnv, "debug")

	cfg := Load("")

	assert.Equal(t, "https://from-env.example", cfg.Backend.URL)
	assert.Equal(t, "anon-key", cfg.Backend.APIKey)
	assert.Equal(t, "postgres://u:p@db:5432/news", cfg.Database.DSN)
	assert.Equal(t, "redis://cache:6379", cfg.Cooldown.RedisURL)
	assert.True(t, cfg.Notifications.Telegram.Enabled())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadBadYAMLFallsBack(t *testing.T) {
	t.Setenv(backendURLEnv, "")
	path := writeConfig(t, "backend: [unterminated")

	cfg := Load(path)
	assert.Equal(t, defaultConfig().Backend.URL, cfg.Backend.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown store", mutate: func(c *Config) { c.Cooldown.Store = "etcd" }, wantErr: `unknown cooldown store "etcd"`},
		{name: "file without path", mutate: func(c *Config) { c.Cooldown.Path = "" }, wantErr: "cooldown.path"},
		{name: "redis without url", mutate: func(c *Config) { c.Cooldown.Store = StoreRedis }, wantErr: "cooldown.redisUrl"},
		{name: "negative window", mutate: func(c *Config) { c.Cooldown.Failure = -time.Minute }, wantErr: "cooldown windows"},
		{name: "negative auto refresh", mutate: func(c *Config) { c.Pipeline.AutoRefreshInterval = ptr(-time.Second) }, wantErr: "autoRefreshInterval"},
		{name: "missing backend", mutate: func(c *Config) { c.Backend.URL = "" }, wantErr: "backend.url"},
		{name: "memory store", mutate: func(c *Config) { c.Cooldown.Store = StoreMemory }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
