// Package config builds the explicit runtime configuration injected into the
// enrichment pipeline, AI clients, notification dispatcher, and server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	StateDir  string          `mapstructure:"state_dir"`
	DBPath    string          `mapstructure:"db_path"`
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
}

// ServerConfig configures the REST API listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AIConfig configures the external AI classifier.
type AIConfig struct {
	// Provider is "service" (HTTP AI service), "anthropic", or "none".
	Provider  string        `mapstructure:"provider"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second
	Burst     int           `mapstructure:"burst"`
	Threshold float64       `mapstructure:"threshold"`
}

// AnthropicConfig configures the Anthropic-backed classifier provider.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// SMTPConfig configures outgoing email. An empty Host disables SMTP delivery.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// Timeout bounds one delivery, from dial to QUIT.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Provider names.
const (
	ProviderService   = "service"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// DefaultDir returns ~/.config/awaaz.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "awaaz")
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper, stateDir string) {
	v.SetDefault("state_dir", stateDir)
	v.SetDefault("db_path", filepath.Join(stateDir, "awaaz.db"))
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("ai.provider", ProviderService)
	v.SetDefault("ai.base_url", "http://localhost:8001/api/v1")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("ai.rate_limit", 10.0)
	v.SetDefault("ai.burst", 5)
	v.SetDefault("ai.threshold", 0.5)
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "noreply@awaaz.local")
	v.SetDefault("smtp.timeout", "10s")
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail far from their source.
func (c *Config) Validate() error {
	switch strings.ToLower(c.AI.Provider) {
	case ProviderService:
		if c.AI.BaseURL == "" {
			return fmt.Errorf("ai.base_url is required for the %q provider", ProviderService)
		}
	case ProviderAnthropic, ProviderNone:
	default:
		return fmt.Errorf("unknown ai.provider %q (want service, anthropic, or none)", c.AI.Provider)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive, got %s", c.AI.Timeout)
	}
	if c.AI.RateLimit <= 0 {
		return fmt.Errorf("ai.rate_limit must be positive, got %v", c.AI.RateLimit)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// SMTPEnabled reports whether outgoing email is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != ""
}
