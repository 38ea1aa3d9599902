// Package auth exchanges a TradingView sessionid cookie for the auth
// token expected by set_auth_token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

// DefaultURL is a page that embeds the auth token of a logged-in user.
const DefaultURL = "https://www.tradingview.com/disclaimer/"

// CookieName is the cookie carrying the session credential.
const CookieName = "sessionid"

// ErrUnexpectedStatus is returned for non-2xx responses.
var ErrUnexpectedStatus = errors.New("auth: unexpected status")

var tokenPattern = regexp.MustCompile(`"auth_token":"(.+?)"`)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver looks up auth tokens over HTTP.
type Resolver struct {
	client Doer
	url    string
	logger zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the HTTP collaborator.
func WithHTTPClient(client Doer) Option {
	return func(r *Resolver) { r.client = client }
}

// WithURL sets the page searched for the token.
func WithURL(url string) Option {
	return func(r *Resolver) { r.url = url }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New creates a Resolver. Without WithHTTPClient it uses an http.Client
// with a 10 second timeout.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    DefaultURL,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the auth token for credential, or false when none
// could be obtained. Failures are logged, never returned. There is a
// single attempt.
func (r *Resolver) Resolve(ctx context.Context, credential string) (string, bool) {
	body, err := r.fetch(ctx, credential)
	if err != nil {
		r.logger.Error().Err(err).Msg("HTTP request failed while getting auth token")
		return "", false
	}

	match := tokenPattern.FindSubmatch(body)
	if match == nil {
		r.logger.Warn().Str("url", r.url).Msg("auth token not found in response")
		return "", false
	}
	return string(match[1]), true
}

func (r *Resolver) fetch(ctx context.Context, credential string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: CookieName, Value: credential})

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
