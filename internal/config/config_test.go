package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DENYLISTED_SERVICES", "")
	t.Setenv("TRUSTED_PROXIES", "")

	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 24, cfg.PageSize)
	assert.Equal(t, 5*time.Second, cfg.RevealDelay)
	assert.Equal(t, []string{"Cloudflare"}, cfg.DenylistedServices)
	assert.False(t, cfg.RedisEnabled())
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PAGE_SIZE", "not-a-number")
	t.Setenv("REVEAL_DELAY", "3s")
	t.Setenv("DENYLISTED_SERVICES", " Cloudflare , ,Vidhide ")
	t.Setenv("BASE_URL", "https://example.org/")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 24, cfg.PageSize)
	assert.Equal(t, 3*time.Second, cfg.RevealDelay)
	assert.Equal(t, []string{"Cloudflare", "Vidhide"}, cfg.DenylistedServices)
	assert.Equal(t, "https://example.org", cfg.BaseURL)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.AppSecret = "short"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_SECRET")

	cfg.AppSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())

	cfg.PageSize = 7
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE")
}
