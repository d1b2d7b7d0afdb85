// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for console output.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig configures the controlled Chrome instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	StartURL          string        `mapstructure:"start_url" yaml:"start_url"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleWait        time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
}

// LLMProvider defines the supported model providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the vision-language model clients and routing.
type LLMConfig struct {
	Provider      LLMProvider   `mapstructure:"provider" yaml:"provider"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"`
	FastModel     string        `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel string        `mapstructure:"powerful_model" yaml:"powerful_model"`
	APITimeout    time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetryTime  time.Duration `mapstructure:"max_retry_time" yaml:"max_retry_time"`
}

// AgentConfig holds settings for the step controller and workflow driver.
type AgentConfig struct {
	LLM             LLMConfig     `mapstructure:"llm" yaml:"llm"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	DirectRetries   int           `mapstructure:"direct_retries" yaml:"direct_retries"`
	HistoryWindow   int           `mapstructure:"history_window" yaml:"history_window"`
	WorkflowTimeout time.Duration `mapstructure:"workflow_timeout" yaml:"workflow_timeout"`
	WorkflowType    string        `mapstructure:"workflow_type" yaml:"workflow_type"`
}

// StoreConfig selects and configures the run/trace persistence backend.
type StoreConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // "memory" or "postgres"
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sherpa-cli")
	v.SetDefault("logger.log_file", "sherpa.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 936)
	v.SetDefault("browser.start_url", "https://www.google.com")
	v.SetDefault("browser.navigation_timeout", "15s")
	v.SetDefault("browser.settle_wait", "500ms")

	// -- Agent --
	v.SetDefault("agent.llm.provider", "gemini")
	v.SetDefault("agent.llm.fast_model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.powerful_model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.api_timeout", "30s")
	v.SetDefault("agent.llm.max_retry_time", "2m")
	v.SetDefault("agent.max_retries", 3)
	v.SetDefault("agent.direct_retries", 3)
	v.SetDefault("agent.history_window", 2)
	v.SetDefault("agent.workflow_timeout", "5m")
	v.SetDefault("agent.workflow_type", "browser")

	// -- Store --
	v.SetDefault("store.type", "memory")
}

// NewDefaultConfig returns a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("agent.llm.api_key", "GEMINI_API_KEY")
	v.BindEnv("store.dsn", "SHERPA_STORE_DSN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Agent.LLM.APIKey == "" {
		cfg.Agent.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("agent.max_retries must not be negative")
	}
	if c.Agent.DirectRetries <= 0 {
		return fmt.Errorf("agent.direct_retries must be a positive integer")
	}
	if c.Agent.HistoryWindow <= 0 {
		return fmt.Errorf("agent.history_window must be a positive integer")
	}
	if c.Agent.WorkflowTimeout <= 0 {
		return fmt.Errorf("agent.workflow_timeout must be a positive duration")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	switch c.Store.Type {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.type is postgres")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}
	return nil
}
