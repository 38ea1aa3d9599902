// Package wstest provides a recording websocket server for tests.
package wstest

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/gobwas/ws/wsutil"
)

// ErrTimeout is returned when the expected traffic does not arrive in time.
var ErrTimeout = errors.New("wstest: timeout")

// Request is the upgrade request a client sent.
type Request struct {
	Host   string
	Path   string
	Header http.Header
	// Deflate is set when permessage-deflate was negotiated.
	Deflate bool
}

// Server accepts websocket clients, records every text or binary frame
// they send, and pushes frames to them on demand.
type Server struct {
	// URL is the ws:// address of the server.
	URL string

	srv      *httptest.Server
	deflate  bool
	requests chan Request
	frames   chan []byte

	mu      sync.Mutex
	clients map[net.Conn]chan []byte
	wg      sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithDeflate makes the server accept permessage-deflate offers and
// compress the frames it pushes to clients that negotiated it.
func WithDeflate() Option {
	return func(s *Server) { s.deflate = true }
}

// NewServer starts a Server. Call Close when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		requests: make(chan Request, 16),
		frames:   make(chan []byte, 256),
		clients:  make(map[net.Conn]chan []byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	s.URL = "ws" + strings.TrimPrefix(s.srv.URL, "http")
	return s
}

// Close disconnects every client and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	for conn, out := range s.clients {
		close(out)
		conn.Close()
		delete(s.clients, conn)
	}
	s.mu.Unlock()

	s.srv.Close()
	s.wg.Wait()
}

// NextRequest waits for the next client upgrade request.
func (s *Server) NextRequest(timeout time.Duration) (Request, error) {
	select {
	case req := <-s.requests:
		return req, nil
	case <-time.After(timeout):
		return Request{}, ErrTimeout
	}
}

// WaitFrames waits until n frames have been received and returns them
// in arrival order.
func (s *Server) WaitFrames(n int, timeout time.Duration) ([][]byte, error) {
	deadline := time.After(timeout)
	frames := make([][]byte, 0, n)
	for len(frames) < n {
		select {
		case f := <-s.frames:
			frames = append(frames, f)
		case <-deadline:
			return frames, ErrTimeout
		}
	}
	return frames, nil
}

// Push sends data as a text frame to every connected client, compressed
// for clients that negotiated permessage-deflate.
func (s *Server) Push(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, out := range s.clients {
		select {
		case out <- data:
		default:
		}
	}
}

// ClientCount returns number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	req := Request{Host: r.Host, Path: r.URL.Path, Header: r.Header.Clone()}

	var upgrader ws.HTTPUpgrader
	var ext wsflate.Extension
	if s.deflate {
		ext.Parameters = wsflate.DefaultParameters
		upgrader.Negotiate = ext.Negotiate
	}

	conn, _, _, err := upgrader.Upgrade(r, w)
	if err != nil {
		return
	}
	_, req.Deflate = ext.Accepted()

	out := make(chan []byte, 16)
	s.mu.Lock()
	s.clients[conn] = out
	s.mu.Unlock()

	select {
	case s.requests <- req:
	default:
	}

	s.wg.Add(2)
	go s.handleClient(conn)
	go s.writeLoop(conn, out, req.Deflate)
}

func (s *Server) handleClient(conn net.Conn) {
	defer s.wg.Done()
	defer s.drop(conn)

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}
		s.frames <- data
	}
}

func (s *Server) writeLoop(conn net.Conn, out <-chan []byte, compress bool) {
	defer s.wg.Done()
	for data := range out {
		frame := ws.NewTextFrame(data)
		if compress {
			var err error
			if frame, err = wsflate.CompressFrame(frame); err != nil {
				return
			}
		}
		if err := ws.WriteFrame(conn, frame); err != nil {
			return
		}
	}
}

func (s *Server) drop(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out, ok := s.clients[conn]; ok {
		close(out)
		delete(s.clients, conn)
	}
	conn.Close()
}
