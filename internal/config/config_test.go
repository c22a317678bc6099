package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOST", "https://home.example.com/")
	t.Setenv("PASSWORD_PEPPER", "pepper")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://home.example.com", cfg.Host)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "connectedhome.db", cfg.DatabasePath)
	assert.Equal(t, 1, cfg.DBMaxOpenConns)
	assert.Equal(t, 10*time.Second, cfg.ValidatorTimeout)
	assert.Equal(t, 10*time.Minute, cfg.OAuthStateTTL)
	assert.Equal(t, 10*time.Minute, cfg.AuthCodeTTL)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.Len(t, cfg.OAuthRedirectPrefixes, 2)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HOST", "https://h")
	t.Setenv("PASSWORD_PEPPER", "pepper")
	t.Setenv("OAUTH_STATE_TTL", "30s")
	t.Setenv("OAUTH_REDIRECT_PREFIXES", "https://a/,https://b/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.OAuthStateTTL)
	assert.Equal(t, []string{"https://a/", "https://b/"}, cfg.OAuthRedirectPrefixes)
}

func TestLoad_RequiresPepperAndHost(t *testing.T) {
	t.Setenv("HOST", "")
	t.Setenv("PASSWORD_PEPPER", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ReturnsParseErrors(t *testing.T) {
	t.Setenv("HOST", "https://h")
	t.Setenv("PASSWORD_PEPPER", "pepper")
	t.Setenv("VALIDATOR_TIMEOUT", "soon")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_UnsetsPepper(t *testing.T) {
	t.Setenv("HOST", "https://h")
	t.Setenv("PASSWORD_PEPPER", "pepper")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pepper", cfg.PasswordPepper)
	_, present := os.LookupEnv("PASSWORD_PEPPER")
	assert.False(t, present)
}
