package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/omochice/tvstream/internal/auth"
	"github.com/omochice/tvstream/internal/config"
	"github.com/omochice/tvstream/internal/logging"
	"github.com/omochice/tvstream/internal/session"
)

// The session credential is read from the config file or
// TVSTREAM_SESSIONID only, so it never shows up in the process list.
type options struct {
	Config   string `short:"c" long:"config" description:"TOML config file"`
	URL      string `short:"u" long:"url" description:"data socket URL"`
	LogLevel string `short:"l" long:"log-level" description:"trace, debug, info, warn, error or off"`
	Dump     bool   `long:"dump" description:"log raw incoming payloads until interrupted"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	if _, err := flags.ParseArgs(&opts, args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		NoColor: cfg.Log.NoColor,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := auth.New(
		auth.WithURL(cfg.AuthURL),
		auth.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		auth.WithLogger(logger),
	)
	h, err := session.Open(ctx, cfg.URL, cfg.SessionID,
		session.WithResolver(resolver),
		session.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	logger.Info().
		Str("url", cfg.URL).
		Str("quote_session", h.QuoteSession()).
		Str("chart_session", h.ChartSession()).
		Msg("Session ready")

	errChan := make(chan error, 1)
	if opts.Dump {
		go func() {
			errChan <- dump(ctx, h, logger)
		}()
	}

	select {
	case err = <-errChan:
		if ctx.Err() != nil {
			err = nil
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	}

	if cerr := h.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("Failed to close connection")
	}
	return err
}

func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	if opts.URL != "" {
		cfg.URL = opts.URL
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func dump(ctx context.Context, h *session.Handler, logger zerolog.Logger) error {
	for {
		payloads, err := h.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		for _, p := range payloads {
			logger.Info().Str("payload", string(p)).Msg("Received")
		}
	}
}
