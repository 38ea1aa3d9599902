// Package config loads tvstream settings from a TOML file and the
// environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/omochice/tvstream/internal/logging"
)

// Environment overrides.
const (
	EnvSessionID = "TVSTREAM_SESSIONID"
	EnvURL       = "TVSTREAM_URL"
	EnvLogLevel  = "TVSTREAM_LOG_LEVEL"
)

// Defaults.
const (
	DefaultURL         = "wss://data.tradingview.com/socket.io/websocket"
	DefaultAuthURL     = "https://www.tradingview.com/disclaimer/"
	DefaultHTTPTimeout = 10 * time.Second
)

// Config holds everything needed to open a session.
type Config struct {
	URL         string
	SessionID   string
	AuthURL     string
	HTTPTimeout time.Duration
	Log         LogConfig
}

// LogConfig selects logger level and format.
type LogConfig struct {
	Level   string
	Format  string
	NoColor bool
}

type fileConfig struct {
	URL         string  `toml:"url"`
	SessionID   string  `toml:"sessionid"`
	AuthURL     string  `toml:"auth_url"`
	HTTPTimeout string  `toml:"http_timeout"`
	Log         fileLog `toml:"log"`
}

type fileLog struct {
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	NoColor bool   `toml:"no_color"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		URL:         DefaultURL,
		AuthURL:     DefaultAuthURL,
		HTTPTimeout: DefaultHTTPTimeout,
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Load reads path on top of Default. Keys absent from the file keep
// their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("sessionid") {
		cfg.SessionID = strings.TrimSpace(raw.SessionID)
	}
	if meta.IsDefined("auth_url") {
		cfg.AuthURL = strings.TrimSpace(raw.AuthURL)
	}
	if meta.IsDefined("http_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HTTPTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse http_timeout: %w", err)
		}
		cfg.HTTPTimeout = d
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}

	return cfg, nil
}

// ApplyEnv overrides cfg from the process environment.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvSessionID)); v != "" {
		c.SessionID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvURL)); v != "" {
		c.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := checkURL("url", c.URL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("auth_url", c.AuthURL, "http", "https"); err != nil {
		return err
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be a %s URL, got %q", key, strings.Join(schemes, "/"), raw)
}
