package session

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewDialer(t *testing.T) {
	tests := []struct {
		transport string
		want      any
		wantErr   bool
	}{
		{"", TCPDialer{}, false},
		{TransportTCP, TCPDialer{}, false},
		{TransportWebSocket, WebSocketDialer{}, false},
		{"carrier-pigeon", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.transport, func(t *testing.T) {
			d, err := NewDialer(tt.transport, "/pod")
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewDialer(%q) error = nil, want error", tt.transport)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDialer(%q) error = %v", tt.transport, err)
			}
			switch tt.want.(type) {
			case TCPDialer:
				if _, ok := d.(TCPDialer); !ok {
					t.Errorf("NewDialer(%q) = %T, want TCPDialer", tt.transport, d)
				}
			case WebSocketDialer:
				if _, ok := d.(WebSocketDialer); !ok {
					t.Errorf("NewDialer(%q) = %T, want WebSocketDialer", tt.transport, d)
				}
			}
		})
	}
}

func TestTCPDialerRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 16)
		n, _ := conn.Read(buf)
		if string(buf[:n]) == PingText {
			conn.Write([]byte("PONG:STANDBY\n"))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := TCPDialer{}.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(PingText)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := string(buf[:n]); got != "PONG:STANDBY\n" {
		t.Errorf("Read() = %q, want %q", got, "PONG:STANDBY\n")
	}
}

func newBridge(t *testing.T, handle func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pod" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestWebSocketDialerSession(t *testing.T) {
	addr := newBridge(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == PingText {
				conn.WriteMessage(websocket.TextMessage, []byte("PONG:COASTING"))
			}
		}
	})

	d := &recordingDisplay{}
	s := New(Config{Address: addr, Dialer: WebSocketDialer{Path: "/pod"}, Display: d})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer s.Close()

	s.Ping(time.Now())
	data, ok := s.Receive()
	if !ok {
		t.Fatal("Receive() ok = false")
	}
	if redraw := s.HandleIncoming(data); redraw {
		t.Errorf("HandleIncoming(%q) = true, want false", data)
	}
	if got := s.Snapshot().State.ShortCode(); got != "COST" {
		t.Errorf("ShortCode() = %q, want %q", got, "COST")
	}
}

func TestWebSocketReadSplitsLargeMessages(t *testing.T) {
	payload := strings.Repeat("t", 100)
	addr := newBridge(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(payload))
		conn.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := WebSocketDialer{Path: "/pod"}.Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	var got strings.Builder
	buf := make([]byte, 30)
	for got.Len() < len(payload) {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got.Write(buf[:n])
	}
	if got.String() != payload {
		t.Errorf("reassembled %d bytes, want %d", got.Len(), len(payload))
	}
}

func TestWebSocketNormalCloseIsEOF(t *testing.T) {
	addr := newBridge(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	conn, err := WebSocketDialer{Path: "/pod"}.Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if _, err := conn.Read(make([]byte, 8)); err != io.EOF {
		t.Errorf("Read() error = %v, want io.EOF", err)
	}
}

func TestWebSocketDialerBadPath(t *testing.T) {
	addr := newBridge(t, func(conn *websocket.Conn) {})

	s := New(Config{Address: addr, Dialer: WebSocketDialer{Path: "/elsewhere"}})
	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("Connect() to a missing bridge path succeeded")
	}
	if s.IsConnected() {
		t.Error("IsConnected() = true after failed handshake")
	}
}
