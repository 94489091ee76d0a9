package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultAuthBaseURL, cfg.API.AuthURL)
	assert.Equal(t, DefaultWSURL, cfg.API.WSURL)
	assert.Equal(t, DefaultHistoryLimit, cfg.Chat.HistoryLimit)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, 3*time.Second, cfg.TypingInterval())
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clutch.toml")
	content := `
[log]
level = "debug"
format = "json"

[api]
base_url = "https://api.example.com"
ws_url = "wss://api.example.com/ws"

[chat]
history_limit = 25
typing_interval = "5s"

[reconnect]
enabled = true
max_interval = "1m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "wss://api.example.com/ws", cfg.API.WSURL)
	// unset fields still get defaults
	assert.Equal(t, DefaultAuthBaseURL, cfg.API.AuthURL)
	assert.Equal(t, 25, cfg.Chat.HistoryLimit)
	assert.Equal(t, 5*time.Second, cfg.TypingInterval())
	assert.True(t, cfg.Reconnect.Enabled)
	assert.Equal(t, time.Minute, cfg.MaxBackoff())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLUTCH_API_URL", "https://env.example.com")
	t.Setenv("CLUTCH_WS_URL", "wss://env.example.com/ws")
	t.Setenv("CLUTCH_TOKEN", "env-token")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, "wss://env.example.com/ws", cfg.API.WSURL)
	assert.Equal(t, DefaultAuthBaseURL, cfg.API.AuthURL)
	assert.Equal(t, "env-token", cfg.API.Token)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clutch.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat]\ntyping_interval = \"soon\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.TypingInterval())
}
