package session

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer reaches a pod through a WebSocket bridge. Every inbound
// text message is one chunk of the byte stream and every write is sent as one
// text message.
type WebSocketDialer struct {
	Path string
}

// Dial performs the WebSocket handshake against ws://address/Path.
func (d WebSocketDialer) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	path := d.Path
	if path == "" {
		path = "/"
	}
	u := url.URL{Scheme: "ws", Host: address, Path: path}

	nd := &net.Dialer{Control: reuseAddrControl}
	dialer := websocket.Dialer{
		NetDialContext:  nd.DialContext,
		ReadBufferSize:  MaxMessageSize,
		WriteBufferSize: MaxMessageSize,
	}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.HandshakeTimeout = time.Until(deadline)
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	pending []byte
}

// Read returns the rest of the current message, fetching the next one when
// the previous message has been fully consumed.
func (c *wsConn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		c.pending = msg
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
