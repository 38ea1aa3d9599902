package session

import "net/http"

var connectionHeaders = [...][2]string{
	{"Accept-Encoding", "gzip, deflate, br, zstd"},
	{"Accept-Language", "en-US,en;q=0.9,fa;q=0.8"},
	{"Cache-Control", "no-cache"},
	{"Connection", "Upgrade"},
	{"Host", "data.tradingview.com"},
	{"Origin", "https://www.tradingview.com"},
	{"Pragma", "no-cache"},
	{"Sec-WebSocket-Extensions", "permessage-deflate; client_max_window_bits"},
	{"Upgrade", "websocket"},
	{"User-Agent", "Mozilla/5.0 (Windows NT 6.3; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36"},
}

// ConnectionHeaders returns the upgrade request headers the data server
// expects. Each call returns a new map.
func ConnectionHeaders() http.Header {
	h := make(http.Header, len(connectionHeaders))
	for _, kv := range connectionHeaders {
		h.Set(kv[0], kv[1])
	}
	return h
}
