// Package ws provides the websocket transport for the data socket.
package ws

import (
	"bufio"
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gobwas/httphead"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/gobwas/ws/wsutil"
)

// ErrNotConnected is returned for operations on a closed Conn.
var ErrNotConnected = errors.New("ws: not connected")

// The upgrade request writes these itself. Host is written from
// Dialer.Host, the extension offer from Dialer.Extensions.
var handshakeOwned = []string{"Host", "Connection", "Upgrade", "Sec-WebSocket-Extensions"}

// Conn is a client websocket connection carrying text frames. Close may
// be called while a Read is blocked; it unblocks the Read.
type Conn struct {
	conn       net.Conn
	reader     *wsutil.Reader
	deflate    *wsflate.MessageState
	inflater   *wsflate.Reader
	remoteAddr string
	closed     atomic.Bool
}

// Dial opens a websocket connection to url, sending header with the
// upgrade request. A permessage-deflate offer in header is negotiated;
// when the server accepts it, compressed frames are inflated on Read.
// Frames are always sent uncompressed.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	dialer := ws.Dialer{
		Host:       header.Get("Host"),
		Header:     ws.HandshakeHeaderHTTP(upgradeHeader(header)),
		Extensions: extensionOffer(header),
	}

	conn, br, hs, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &Conn{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
	}

	var src io.Reader = conn
	if br != nil {
		src = &handshakeReader{br: br, conn: conn}
	}
	c.reader = &wsutil.Reader{
		Source:         src,
		State:          ws.StateClientSide,
		OnIntermediate: wsutil.ControlFrameHandler(conn, ws.StateClientSide),
	}
	if negotiated(hs.Extensions, wsflate.ExtensionName) {
		c.deflate = &wsflate.MessageState{}
		c.reader.Extensions = []wsutil.RecvExtension{c.deflate}
		c.inflater = wsflate.NewReader(nil, func(r io.Reader) wsflate.Decompressor {
			return flate.NewReader(r)
		})
	}
	return c, nil
}

// Compressed reports whether permessage-deflate was negotiated.
func (c *Conn) Compressed() bool {
	return c.deflate != nil
}

// Send writes data as a single text frame.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteClientText(c.conn, data)
}

// Read returns the payload of the next data message. Pings and other
// control frames are answered on the way.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := c.reader.OnIntermediate(hdr, c.reader); err != nil {
				return nil, err
			}
			continue
		}

		var r io.Reader = c.reader
		if c.deflate != nil && c.deflate.IsCompressed() {
			c.inflater.Reset(c.reader)
			r = c.inflater
		}
		return io.ReadAll(r)
	}
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	return c.conn.Close()
}

// RemoteAddr returns the server address.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// handshakeReader drains bytes the dialer buffered past the handshake
// response, then releases the buffer and reads the socket directly.
type handshakeReader struct {
	br   *bufio.Reader
	conn net.Conn
}

func (r *handshakeReader) Read(p []byte) (int, error) {
	if r.br != nil {
		if r.br.Buffered() > 0 {
			return r.br.Read(p)
		}
		ws.PutReader(r.br)
		r.br = nil
	}
	return r.conn.Read(p)
}

func upgradeHeader(header http.Header) http.Header {
	out := header.Clone()
	if out == nil {
		return http.Header{}
	}
	for _, name := range handshakeOwned {
		out.Del(name)
	}
	return out
}

func extensionOffer(header http.Header) []httphead.Option {
	var offer []httphead.Option
	for _, v := range header.Values("Sec-WebSocket-Extensions") {
		opts, ok := httphead.ParseOptions([]byte(v), nil)
		if !ok {
			continue
		}
		offer = append(offer, opts...)
	}
	return offer
}

func negotiated(accepted []httphead.Option, name string) bool {
	for _, opt := range accepted {
		if string(opt.Name) == name {
			return true
		}
	}
	return false
}
