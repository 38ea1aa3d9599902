// Package protocol implements the envelope framing used by the
// TradingView data socket.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	// ErrEncode is returned when message parameters cannot be serialized.
	ErrEncode = errors.New("protocol: failed to encode message")

	// ErrMalformedEnvelope is returned by Unframe for data that is not a
	// sequence of well-formed envelopes.
	ErrMalformedEnvelope = errors.New("protocol: malformed envelope")
)

var marker = []byte("~m~")

// Message is a single protocol call: a function name and its ordered
// parameter list.
type Message struct {
	Function string
	Params   []any
}

// wireMessage fixes the key order of the serialized object.
type wireMessage struct {
	M string `json:"m"`
	P []any  `json:"p"`
}

// Encode serializes the message as compact JSON {"m":...,"p":[...]}.
// The output is pure ASCII, so its byte length is its character length.
func (m *Message) Encode() ([]byte, error) {
	params := m.Params
	if params == nil {
		params = []any{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wireMessage{M: m.Function, P: params}); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrEncode, m.Function, err)
	}
	return escapeNonASCII(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Envelope prepends the ~m~<length>~m~ header to payload.
func Envelope(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2*len(marker)+8)
	out = append(out, marker...)
	out = strconv.AppendInt(out, int64(len(payload)), 10)
	out = append(out, marker...)
	return append(out, payload...)
}

// Frame encodes a call and wraps it in an envelope, ready for the wire.
func Frame(function string, params ...any) ([]byte, error) {
	msg := Message{Function: function, Params: params}
	payload, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	return Envelope(payload), nil
}

// Unframe splits data into the payloads of its envelopes. The server may
// pack several envelopes into one websocket frame.
func Unframe(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedEnvelope)
	}

	var payloads [][]byte
	for len(data) > 0 {
		if !bytes.HasPrefix(data, marker) {
			return nil, fmt.Errorf("%w: missing marker", ErrMalformedEnvelope)
		}
		rest := data[len(marker):]

		end := bytes.Index(rest, marker)
		if end <= 0 {
			return nil, fmt.Errorf("%w: missing length", ErrMalformedEnvelope)
		}
		n, err := parseLength(rest[:end])
		if err != nil {
			return nil, err
		}
		rest = rest[end+len(marker):]

		if n > len(rest) {
			return nil, fmt.Errorf("%w: want %d bytes, have %d", ErrMalformedEnvelope, n, len(rest))
		}
		payloads = append(payloads, rest[:n])
		data = rest[n:]
	}
	return payloads, nil
}

func parseLength(digits []byte) (int, error) {
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: bad length %q", ErrMalformedEnvelope, digits)
		}
	}
	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, fmt.Errorf("%w: bad length %q", ErrMalformedEnvelope, digits)
	}
	return n, nil
}

// escapeNonASCII rewrites every rune outside ASCII as a \uXXXX
// escape, using surrogate pairs above the BMP. encoding/json has already
// escaped quotes, backslashes and control characters, so any such rune
// left in the output sits inside a string literal.
func escapeNonASCII(b []byte) []byte {
	if isASCII(b) {
		return b
	}

	out := make([]byte, 0, len(b)+16)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		switch {
		case r < utf8.RuneSelf:
			out = append(out, byte(r))
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			out = appendEscape(appendEscape(out, r1), r2)
		default:
			out = appendEscape(out, r)
		}
	}
	return out
}

func appendEscape(out []byte, r rune) []byte {
	return fmt.Appendf(out, `\u%04x`, r)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
