package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PRESENZE_PORT", "PRESENZE_DB_PATH", "PRESENZE_API_URL", "PRESENZE_API_TOKEN",
	"PRESENZE_PUBLIC_URL", "PRESENZE_LOG_LEVEL", "PRESENZE_LOG_FORMAT",
	"PRESENZE_NOTIFICATION_PERMISSION", "PRESENZE_CACHE_TTL",
	"PRESENZE_VAPID_PUBLIC_KEY", "PRESENZE_VAPID_PRIVATE_KEY",
}

// clearEnv unsets every key for the test; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "presenze.db", cfg.DBPath)
	assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	assert.Equal(t, "granted", cfg.NotificationPermission)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.LoopbackEnabled())
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "PRESENZE_PORT=9090\nPRESENZE_API_URL=https://api.example.com/\nPRESENZE_CACHE_TTL=1m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PRESENZE_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port, "environment wins over the file")
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"PRESENZE_PORT":                    "abc",
		"PRESENZE_CACHE_TTL":               "soon",
		"PRESENZE_NOTIFICATION_PERMISSION": "maybe",
		"PRESENZE_LOG_FORMAT":              "xml",
		"PRESENZE_VAPID_PRIVATE_KEY":       "only-private",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
