package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultGoPlusBaseURL, cfg.GoPlusBaseURL)
	assert.Equal(t, DefaultLiFiBaseURL, cfg.LiFiBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.RiskCacheTTL)
	assert.Equal(t, DefaultRiskCacheMaxEntries, cfg.RiskCacheMaxEntries)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GOPLUS_TIMEOUT_SECONDS", "3")
	t.Setenv("GOPLUS_TOKEN_SECURITY_CACHE_TTL_SECONDS", "0")
	t.Setenv("GOPLUS_TOKEN_SECURITY_CACHE_MAX_ENTRIES", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.GoPlusTimeout)
	assert.Equal(t, time.Duration(0), cfg.RiskCacheTTL)
	assert.Equal(t, 7, cfg.RiskCacheMaxEntries)
}

func TestValidate_CredentialsTogether(t *testing.T) {
	t.Setenv("GOPLUS_APP_KEY", "appkey")
	t.Setenv("GOPLUS_APP_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOPLUS_APP_KEY")
}

func TestValidate_NegativeCacheEntries(t *testing.T) {
	t.Setenv("GOPLUS_TOKEN_SECURITY_CACHE_MAX_ENTRIES", "-1")

	_, err := Load()
	require.Error(t, err)
}

func TestIsProduction(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
}
