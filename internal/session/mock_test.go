package session_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/omochice/tvstream/internal/session"
	"github.com/omochice/tvstream/pkg/protocol"
)

// mockConn is a mock implementation of session.Conn for testing.
type mockConn struct {
	readCh    chan []byte
	writtenMu sync.Mutex
	written   [][]byte
	writeErr  error
	closed    bool
}

func newMockConn() *mockConn {
	return &mockConn{readCh: make(chan []byte, 10)}
}

func (m *mockConn) Send(ctx context.Context, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Close() error {
	m.closed = true
	return nil
}

func (m *mockConn) GetWritten() [][]byte {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	return m.written
}

// Compile-time check that mockConn implements session.Conn
var _ session.Conn = (*mockConn)(nil)

// mockDialer records the dial and returns conn or err.
type mockDialer struct {
	conn   session.Conn
	err    error
	url    string
	header http.Header
	calls  int
}

func (d *mockDialer) Dial(ctx context.Context, url string, header http.Header) (session.Conn, error) {
	d.calls++
	d.url = url
	d.header = header
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// stubResolver answers every credential with token, or fails when ok is
// false.
type stubResolver struct {
	token       string
	ok          bool
	credentials []string
}

func (r *stubResolver) Resolve(ctx context.Context, credential string) (string, bool) {
	r.credentials = append(r.credentials, credential)
	return r.token, r.ok
}

type sentCall struct {
	Function string `json:"m"`
	Params   []any  `json:"p"`
}

// decodeFrame checks the envelope of one sent frame and decodes its call.
func decodeFrame(t *testing.T, frame []byte) sentCall {
	t.Helper()
	payloads, err := protocol.Unframe(frame)
	if err != nil {
		t.Fatalf("Unframe(%q) error = %v", frame, err)
	}
	if len(payloads) != 1 {
		t.Fatalf("frame %q holds %d envelopes, want 1", frame, len(payloads))
	}
	var call sentCall
	if err := json.Unmarshal(payloads[0], &call); err != nil {
		t.Fatalf("decode %q: %v", payloads[0], err)
	}
	return call
}
