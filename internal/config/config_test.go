// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1280, cfg.Browser.ViewportWidth)
	assert.Equal(t, 936, cfg.Browser.ViewportHeight)
	assert.Equal(t, 3, cfg.Agent.MaxRetries)
	assert.Equal(t, 3, cfg.Agent.DirectRetries)
	assert.Equal(t, 2, cfg.Agent.HistoryWindow)
	assert.Equal(t, 5*time.Minute, cfg.Agent.WorkflowTimeout)
	assert.Equal(t, ProviderGemini, cfg.Agent.LLM.Provider)
	assert.Equal(t, "memory", cfg.Store.Type)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("agent.max_retries", 5)
	v.Set("browser.headless", false)
	v.Set("agent.llm.api_key", "test-key")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Agent.MaxRetries)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "test-key", cfg.Agent.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	mutate := func(fn func(*Config)) *Config {
		cfg := NewDefaultConfig()
		fn(cfg)
		return cfg
	}

	cases := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"negative retries", mutate(func(c *Config) { c.Agent.MaxRetries = -1 }), "max_retries"},
		{"zero direct retries", mutate(func(c *Config) { c.Agent.DirectRetries = 0 }), "direct_retries"},
		{"zero history window", mutate(func(c *Config) { c.Agent.HistoryWindow = 0 }), "history_window"},
		{"zero timeout", mutate(func(c *Config) { c.Agent.WorkflowTimeout = 0 }), "workflow_timeout"},
		{"bad viewport", mutate(func(c *Config) { c.Browser.ViewportWidth = 0 }), "viewport"},
		{"postgres without dsn", mutate(func(c *Config) { c.Store.Type = "postgres" }), "store.dsn"},
		{"unknown store", mutate(func(c *Config) { c.Store.Type = "redis" }), "unknown store type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("postgres with dsn", func(t *testing.T) {
		cfg := mutate(func(c *Config) {
			c.Store.Type = "postgres"
			c.Store.DSN = "postgres://localhost/sherpa"
		})
		assert.NoError(t, cfg.Validate())
	})
}
