package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every OSMPANEL_ env var that Load() reads.
var allConfigKeys = []string{
	"OSMPANEL_LISTEN_ADDR",
	"OSMPANEL_DB_PATH",
	"OSMPANEL_SECRET_KEY",
	"OSMPANEL_OAUTH_BASE_URL",
	"OSMPANEL_CONSUMER_KEY",
	"OSMPANEL_CONSUMER_SECRET",
	"OSMPANEL_CALLBACK_SCHEME",
	"OSMPANEL_CALLBACK_HOST",
	"OSMPANEL_API_BASE_URL",
	"OSMPANEL_STATISTICS_URL",
	"OSMPANEL_AVATAR_DIR",
	"OSMPANEL_ACHIEVEMENTS_FILE",
	"OSMPANEL_REFRESH_INTERVAL",
	"OSMPANEL_STATISTICS_TIMEOUT",
	"OSMPANEL_STATISTICS_CACHE_TTL",
	"OSMPANEL_LOG_LEVEL",
	"OSMPANEL_DOTENV_TEST",
}

// isolateConfigEnv saves and unsets all OSMPANEL_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "osmpanel.db", cfg.DBPath)
	assert.False(t, cfg.HasSecretKey())
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.StatisticsTimeout)
	assert.Equal(t, 5*time.Minute, cfg.StatisticsCacheTTL)
	assert.Equal(t, slog.LevelInfo, cfg.Level)
	assert.Equal(t, "https://www.westnordost.de/stats/", cfg.StatisticsURL)

	oauth := cfg.OAuthConfig()
	assert.Equal(t, "https://www.openstreetmap.org/oauth/request_token", oauth.RequestTokenURL)
	assert.Equal(t, "https://www.openstreetmap.org/oauth/access_token", oauth.AccessTokenURL)
	assert.Equal(t, "https://www.openstreetmap.org/oauth/authorize", oauth.AuthorizeURL)
	assert.Equal(t, "streetcomplete://oauth", oauth.CallbackURL())
	assert.NotEmpty(t, oauth.ConsumerKey)
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("OSMPANEL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("OSMPANEL_DB_PATH", "/tmp/test.db")
	t.Setenv("OSMPANEL_SECRET_KEY", testKeyHex)
	t.Setenv("OSMPANEL_OAUTH_BASE_URL", "https://master.apis.dev.openstreetmap.org/oauth")
	t.Setenv("OSMPANEL_CALLBACK_SCHEME", "osmpanel")
	t.Setenv("OSMPANEL_CALLBACK_HOST", "callback")
	t.Setenv("OSMPANEL_REFRESH_INTERVAL", "1m")
	t.Setenv("OSMPANEL_STATISTICS_CACHE_TTL", "0s")
	t.Setenv("OSMPANEL_LOG_LEVEL", "debug")
	t.Setenv("OSMPANEL_AVATAR_DIR", "/var/cache/avatars")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	require.True(t, cfg.HasSecretKey())
	assert.Len(t, cfg.SecretKey, 32)
	assert.Equal(t, byte(0x1f), cfg.SecretKey[31])
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Zero(t, cfg.StatisticsCacheTTL)
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.Equal(t, "/var/cache/avatars", cfg.AvatarDir)

	oauth := cfg.OAuthConfig()
	assert.Equal(t, "https://master.apis.dev.openstreetmap.org/oauth/request_token", oauth.RequestTokenURL)
	assert.Equal(t, "osmpanel://callback", oauth.CallbackURL())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "secret key not hex", key: "OSMPANEL_SECRET_KEY", value: "zz"},
		{name: "secret key too short", key: "OSMPANEL_SECRET_KEY", value: "0011"},
		{name: "zero interval", key: "OSMPANEL_REFRESH_INTERVAL", value: "0s"},
		{name: "zero statistics timeout", key: "OSMPANEL_STATISTICS_TIMEOUT", value: "0s"},
		{name: "negative cache ttl", key: "OSMPANEL_STATISTICS_CACHE_TTL", value: "-1s"},
		{name: "bad log level", key: "OSMPANEL_LOG_LEVEL", value: "loud"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tc.key, tc.value)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), strings.TrimPrefix(tc.key, Prefix))
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("OSMPANEL_REFRESH_INTERVAL", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestLoadDotEnv(t *testing.T) {
	isolateConfigEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OSMPANEL_DOTENV_TEST=from-file\nOSMPANEL_DB_PATH=file.db\n"), 0o600))
	t.Setenv("OSMPANEL_DB_PATH", "env.db")

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path))

	assert.Equal(t, "from-file", os.Getenv("OSMPANEL_DOTENV_TEST"))
	assert.Equal(t, "env.db", os.Getenv("OSMPANEL_DB_PATH"), "existing variables win")
}
