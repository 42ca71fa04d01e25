package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v, t.TempDir())
	return v
}

func TestLoad_Defaults(t *testing.T) {
	v := newViper(t)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ProviderService, cfg.AI.Provider)
	assert.Equal(t, "http://localhost:8001/api/v1", cfg.AI.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 10.0, cfg.AI.RateLimit)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "awaaz.db", filepath.Base(cfg.DBPath))
	assert.False(t, cfg.SMTPEnabled())
	assert.Equal(t, 10*time.Second, cfg.SMTP.Timeout)
}

func TestLoad_Overrides(t *testing.T) {
	v := newViper(t)
	v.Set("ai.timeout", "5s")
	v.Set("ai.base_url", "http://ai.internal/api/v1")
	v.Set("smtp.host", "smtp.example.com")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "http://ai.internal/api/v1", cfg.AI.BaseURL)
	assert.True(t, cfg.SMTPEnabled())
}

func TestLoad_InvalidProvider(t *testing.T) {
	v := newViper(t)
	v.Set("ai.provider", "magic")

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ai.provider")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080},
			AI:     AIConfig{Provider: ProviderService, BaseURL: "http://x", Timeout: time.Second, RateLimit: 1},
		}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.AI.BaseURL = ""
	assert.Error(t, c.Validate())

	c = base()
	c.AI.Provider = ProviderNone
	c.AI.BaseURL = ""
	assert.NoError(t, c.Validate(), "base URL only matters for the service provider")

	c = base()
	c.AI.Timeout = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Server.Port = 70000
	assert.Error(t, c.Validate())
}
