package session_test

import (
	"testing"

	"github.com/omochice/tvstream/internal/session"
)

func TestConnectionHeaders(t *testing.T) {
	want := map[string]string{
		"Accept-Encoding":          "gzip, deflate, br, zstd",
		"Accept-Language":          "en-US,en;q=0.9,fa;q=0.8",
		"Cache-Control":            "no-cache",
		"Connection":               "Upgrade",
		"Host":                     "data.tradingview.com",
		"Origin":                   "https://www.tradingview.com",
		"Pragma":                   "no-cache",
		"Sec-WebSocket-Extensions": "permessage-deflate; client_max_window_bits",
		"Upgrade":                  "websocket",
		"User-Agent":               "Mozilla/5.0 (Windows NT 6.3; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36",
	}

	got := session.ConnectionHeaders()
	if len(got) != len(want) {
		t.Errorf("ConnectionHeaders() has %d headers, want %d", len(got), len(want))
	}
	for name, value := range want {
		if got.Get(name) != value {
			t.Errorf("%s = %q, want %q", name, got.Get(name), value)
		}
	}
}

func TestConnectionHeaders_Fresh(t *testing.T) {
	h := session.ConnectionHeaders()
	h.Set("Origin", "https://evil.example")

	if got := session.ConnectionHeaders().Get("Origin"); got != "https://www.tradingview.com" {
		t.Errorf("Origin = %q after mutating an earlier copy", got)
	}
}
