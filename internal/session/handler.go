// Package session opens and initializes a TradingView data socket
// session: one connection carrying a quote session and a chart session.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/omochice/tvstream/internal/auth"
	"github.com/omochice/tvstream/internal/transport/ws"
	"github.com/omochice/tvstream/pkg/protocol"
)

// ErrConnection is returned by Open when the transport cannot be
// established.
var ErrConnection = errors.New("session: connection failed")

// State is the lifecycle state of a Handler.
type State int

const (
	StateConnecting State = iota
	StateReady
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Conn is the transport connection owned by a Handler.
type Conn interface {
	// Send writes one text frame.
	Send(ctx context.Context, data []byte) error

	// Read returns the next frame from the server.
	Read(ctx context.Context) ([]byte, error)

	// Close closes the connection.
	Close() error
}

// Dialer opens transport connections.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	return f(ctx, url, header)
}

// TokenResolver exchanges a session credential for an auth token.
type TokenResolver interface {
	Resolve(ctx context.Context, credential string) (string, bool)
}

type options struct {
	dialer   Dialer
	resolver TokenResolver
	logger   zerolog.Logger
}

// Option configures Open.
type Option func(*options)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithResolver replaces the HTTP token resolver.
func WithResolver(r TokenResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Handler owns one initialized connection. It does no locking; callers
// must not use it from several goroutines at once.
type Handler struct {
	conn         Conn
	logger       zerolog.Logger
	state        State
	quoteSession string
	chartSession string
}

// Open connects to url and runs the session setup sequence. An empty
// credential connects as an unauthorized user, as does a credential for
// which no token can be resolved. Only a failure to connect is returned.
func Open(ctx context.Context, url, credential string, opts ...Option) (*Handler, error) {
	o := options{
		dialer: DialerFunc(dialWebSocket),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = auth.New(auth.WithLogger(o.logger))
	}

	token := protocol.UnauthorizedToken
	if credential != "" {
		if resolved, ok := o.resolver.Resolve(ctx, credential); ok {
			token = resolved
		} else {
			o.logger.Error().Msg("Failed to get auth token. Connecting as unauthorized user.")
		}
	}

	conn, err := o.dialer.Dial(ctx, url, ConnectionHeaders())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, url, err)
	}

	h := &Handler{
		conn:   conn,
		logger: o.logger,
		state:  StateConnecting,
	}
	h.initialize(ctx, token)
	return h, nil
}

// QuoteSession returns the quote session ID.
func (h *Handler) QuoteSession() string {
	return h.quoteSession
}

// ChartSession returns the chart session ID.
func (h *Handler) ChartSession() string {
	return h.chartSession
}

// State returns the current state.
func (h *Handler) State() State {
	return h.state
}

// SendMessage frames a call and sends it. Delivery is best effort:
// encode and send failures are logged and dropped.
func (h *Handler) SendMessage(ctx context.Context, function string, args ...any) {
	frame, err := protocol.Frame(function, args...)
	if err != nil {
		h.logger.Error().Err(err).Str("function", function).Msg("Failed to encode message")
		return
	}

	h.logger.Debug().Str("frame", string(frame)).Msg("Sending message")
	if err := h.conn.Send(ctx, frame); err != nil {
		h.logger.Error().Err(err).Str("function", function).Msg("Failed to send message")
	}
}

// Read returns the envelope payloads of the next frame from the server,
// undecoded.
func (h *Handler) Read(ctx context.Context) ([][]byte, error) {
	data, err := h.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.Unframe(data)
}

// Close closes the connection.
func (h *Handler) Close() error {
	return h.conn.Close()
}

func (h *Handler) initialize(ctx context.Context, token string) {
	quote := GenerateID(QuoteSessionPrefix)
	chart := GenerateID(ChartSessionPrefix)
	h.logger.Info().
		Str("quote_session", quote).
		Str("chart_session", chart).
		Msg("Sessions generated")

	for _, msg := range initMessages(token, quote, chart) {
		h.SendMessage(ctx, msg.Function, msg.Params...)
	}

	h.quoteSession = quote
	h.chartSession = chart
	h.state = StateReady
}

// initMessages builds the setup calls in protocol.InitSequence order.
func initMessages(token, quote, chart string) []protocol.Message {
	fields := protocol.QuoteFields()
	setFields := make([]any, 0, len(fields)+1)
	setFields = append(setFields, quote)
	for _, f := range fields {
		setFields = append(setFields, f)
	}

	return []protocol.Message{
		{Function: protocol.FuncSetAuthToken, Params: []any{token}},
		{Function: protocol.FuncSetLocale, Params: []any{protocol.LocaleLanguage, protocol.LocaleCountry}},
		{Function: protocol.FuncChartCreateSession, Params: []any{chart, ""}},
		{Function: protocol.FuncQuoteCreateSession, Params: []any{quote}},
		{Function: protocol.FuncQuoteSetFields, Params: setFields},
		{Function: protocol.FuncQuoteHibernateAll, Params: []any{quote}},
	}
}

func dialWebSocket(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, err := ws.Dial(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
