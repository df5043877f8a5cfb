package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/metax/src/types"
)

const closeWriteTimeout = time.Second

// WSDialer opens duplex channels with fasthttp/websocket.
type WSDialer struct {
	dialer    *websocket.Dialer
	readLimit int64
}

// NewWSDialer creates a dialer. readLimit caps inbound frames, 0 = unlimited.
func NewWSDialer(handshakeTimeout time.Duration, readLimit int64) *WSDialer {
	return &WSDialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
		},
		readLimit: readLimit,
	}
}

// Dial connects to url.
func (d *WSDialer) Dial(ctx context.Context, url string) (types.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", redact(url), resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", redact(url), err)
	}
	if d.readLimit > 0 {
		conn.SetReadLimit(d.readLimit)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn wraps fasthttp/websocket.Conn to satisfy types.Conn.
type wsConn struct {
	conn *websocket.Conn
}

// ReadMessage returns the next text or binary frame.
func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close sends a normal closure frame and closes the connection.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	cerr := c.conn.Close()
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return errors.Join(werr, cerr)
	}
	return cerr
}

// CloseReason extracts the close code and text from a read error, if the
// peer sent a close frame.
func CloseReason(err error) (int, string, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// redact strips the query so access tokens stay out of errors and logs.
func redact(url string) string {
	base, _, _ := strings.Cut(url, "?")
	return base
}
