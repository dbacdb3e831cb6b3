package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// Transport names accepted by NewDialer.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// Dialer opens the byte stream a Session talks over.
type Dialer interface {
	Dial(ctx context.Context, address string) (io.ReadWriteCloser, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context, address string) (io.ReadWriteCloser, error)

// Dial calls f(ctx, address).
func (f DialFunc) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	return f(ctx, address)
}

// NewDialer returns the dialer for the named transport. path is only used by
// the WebSocket transport.
func NewDialer(transport, path string) (Dialer, error) {
	switch transport {
	case "", TransportTCP:
		return TCPDialer{KeepAlive: 15 * time.Second}, nil
	case TransportWebSocket:
		return WebSocketDialer{Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}

// TCPDialer connects over plain TCP with address reuse enabled.
type TCPDialer struct {
	KeepAlive time.Duration
}

// Dial opens a TCP connection. The deadline comes from ctx.
func (d TCPDialer) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	nd := net.Dialer{
		KeepAlive: d.KeepAlive,
		Control:   reuseAddrControl,
	}
	conn, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
