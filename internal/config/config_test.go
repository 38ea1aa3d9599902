package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/tvstream/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tvstream.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, config.DefaultURL, cfg.URL)
	assert.Equal(t, config.DefaultAuthURL, cfg.AuthURL)
	assert.Equal(t, config.DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Empty(t, cfg.SessionID)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
url = "wss://data.example.com/socket.io/websocket"
sessionid = " abc123 "
http_timeout = "3s"

[log]
level = "debug"
format = "json"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://data.example.com/socket.io/websocket", cfg.URL)
	assert.Equal(t, "abc123", cfg.SessionID)
	assert.Equal(t, config.DefaultAuthURL, cfg.AuthURL)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Log.NoColor)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, `url = [`))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, `http_timeout = "soon"`))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(config.EnvSessionID, "from-env")
	t.Setenv(config.EnvURL, "ws://localhost:9000/socket")
	t.Setenv(config.EnvLogLevel, "error")

	cfg := config.Default()
	cfg.ApplyEnv()
	assert.Equal(t, "from-env", cfg.SessionID)
	assert.Equal(t, "ws://localhost:9000/socket", cfg.URL)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"http url", func(c *config.Config) { c.URL = "https://data.tradingview.com" }},
		{"empty url", func(c *config.Config) { c.URL = "" }},
		{"ws auth url", func(c *config.Config) { c.AuthURL = "ws://www.tradingview.com" }},
		{"zero timeout", func(c *config.Config) { c.HTTPTimeout = 0 }},
		{"bad level", func(c *config.Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *config.Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
