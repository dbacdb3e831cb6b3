// Package session owns the connection to a Pod controller: connect and
// reconnect bookkeeping, framing of outbound commands and inbound liveness
// replies, and conversion of I/O failures into disconnects.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openloop/podctl/internal/journal"
	"github.com/openloop/podctl/internal/logger"
	"github.com/openloop/podctl/internal/podstate"
)

const (
	// MaxMessageSize bounds a single inbound read.
	MaxMessageSize = 2048

	// PingText is the liveness ping sent by Ping.
	PingText = "ping"

	pongMarker = "PONG:"

	DefaultPingTimeout    = 10 * time.Second
	DefaultConnectTimeout = time.Second

	writeTimeout = 2 * time.Second
)

// Display receives everything the session wants shown to the operator.
// Implementations must be safe for concurrent use.
type Display interface {
	// Print writes telemetry text verbatim.
	Print(text string)
	// Notice writes a highlighted operator notice.
	Notice(text string)
	// Redraw re-renders the prompt line.
	Redraw()
}

// Recorder persists session events. *journal.Journal implements it.
type Recorder interface {
	Record(ev journal.Event)
}

// Config holds the collaborators and timing of a Session.
type Config struct {
	Address        string
	Dialer         Dialer
	Display        Display
	Recorder       Recorder
	PingTimeout    time.Duration
	ConnectTimeout time.Duration
}

// Snapshot is a consistent copy of the session's observable state.
type Snapshot struct {
	Address   string
	Connected bool
	ConnID    string
	State     podstate.State
	HasState  bool
	Received  int
	LastPing  time.Time
}

// Session is one logical connection to a fixed pod address. It is created
// once and reused across reconnects.
type Session struct {
	address        string
	dialer         Dialer
	display        Display
	recorder       Recorder
	pingTimeout    time.Duration
	connectTimeout time.Duration
	now            func() time.Time

	// mu guards the connection handle and the liveness bookkeeping.
	mu       sync.Mutex
	conn     io.ReadWriteCloser
	connID   string
	lastPing time.Time
	received int
	state    podstate.State
	hasState bool

	// wmu serializes writes so pings and commands never interleave.
	wmu sync.Mutex
}

// New creates a disconnected session.
func New(cfg Config) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = TCPDialer{}
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = DefaultPingTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Display == nil {
		cfg.Display = discardDisplay{}
	}

	return &Session{
		address:        cfg.Address,
		dialer:         cfg.Dialer,
		display:        cfg.Display,
		recorder:       cfg.Recorder,
		pingTimeout:    cfg.PingTimeout,
		connectTimeout: cfg.ConnectTimeout,
		now:            time.Now,
		state:          podstate.Unknown,
	}
}

// Address returns the target address.
func (s *Session) Address() string {
	return s.address
}

// Connect opens a new connection, replacing any previous one. On failure the
// session stays disconnected and a *ConnectError is returned.
func (s *Session) Connect(ctx context.Context) error {
	s.Close()

	dialCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	conn, err := s.dialer.Dial(dialCtx, s.address)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		logger.Debug("Connect failed", "address", s.address, "error", err)
		return &ConnectError{Address: s.address, Err: err}
	}

	id := uuid.NewString()

	s.mu.Lock()
	s.conn = conn
	s.connID = id
	s.lastPing = s.now()
	s.received = 0
	s.state = podstate.Unknown
	s.hasState = false
	s.mu.Unlock()

	logger.Info("Connected to pod", "address", s.address, "conn_id", id)
	s.record(journal.KindConnected, id, "")
	return nil
}

// Close drops the current connection. It is idempotent and safe to call from
// any goroutine.
func (s *Session) Close() {
	s.closeConn(nil, "closed")
}

// closeConn closes the current connection. When expected is non-nil the
// connection is only closed if it is still the current one, so a stale
// reader or writer cannot tear down a newer connection. It reports whether
// this call performed the close.
func (s *Session) closeConn(expected io.ReadWriteCloser, reason string) bool {
	s.mu.Lock()
	conn := s.conn
	if conn == nil || (expected != nil && conn != expected) {
		s.mu.Unlock()
		return false
	}
	s.conn = nil
	id := s.connID
	s.mu.Unlock()

	if err := conn.Close(); err != nil {
		logger.Debug("Error closing connection", "address", s.address, "error", err)
	}
	logger.Info("Disconnected from pod", "address", s.address, "conn_id", id, "reason", reason)
	s.record(journal.KindDisconnected, id, reason)
	return true
}

// IsConnected reports whether a connection is held.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Session) current() (io.ReadWriteCloser, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn, s.connID
}

// Send writes text as raw bytes. It does nothing when disconnected; a write
// failure closes the session instead of being returned.
func (s *Session) Send(text string) {
	conn, _ := s.current()
	if conn == nil {
		return
	}

	s.wmu.Lock()
	if d, ok := conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		d.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	_, err := io.WriteString(conn, text)
	s.wmu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: send: %v", ErrIO, err)
		if s.closeConn(conn, err.Error()) {
			logger.Error("Send failed", "address", s.address, "error", err)
		}
	}
}

// SendCommand sends cmd terminated by a newline and records it.
func (s *Session) SendCommand(cmd string) {
	_, id := s.current()
	s.Send(cmd + "\n")
	if id != "" {
		s.record(journal.KindCommand, id, cmd)
	}
}

// Receive performs one read of at most MaxMessageSize bytes. It returns false
// when the session is disconnected or the read failed, in which case the
// session has been closed.
func (s *Session) Receive() (string, bool) {
	conn, _ := s.current()
	return s.receive(conn)
}

// ReceiveOn is Receive restricted to the connection identified by connID. It
// returns "", false without reading once that connection has been replaced or
// closed, so a reader started for an old connection never consumes data
// meant for a newer one.
func (s *Session) ReceiveOn(connID string) (string, bool) {
	conn, id := s.current()
	if id != connID {
		return "", false
	}
	return s.receive(conn)
}

func (s *Session) receive(conn io.ReadWriteCloser) (string, bool) {
	if conn == nil {
		return "", false
	}

	buf := make([]byte, MaxMessageSize)
	n, err := conn.Read(buf)
	if n > 0 {
		data := string(buf[:n])
		logger.Debug("Received data", "address", s.address, "data", data)
		return data, true
	}
	if err == nil {
		return "", true
	}

	if errors.Is(err, io.EOF) {
		if s.closeConn(conn, "remote closed connection") {
			logger.Warning("Pod closed the connection", "address", s.address)
		}
		return "", false
	}

	err = fmt.Errorf("%w: receive: %v", ErrIO, err)
	if s.closeConn(conn, err.Error()) {
		logger.Error("Receive failed", "address", s.address, "error", err)
	} else {
		logger.Debug("Read ended after close", "address", s.address, "error", err)
	}
	return "", false
}

// HandleIncoming classifies raw inbound data. Lines carrying a PONG frame are
// liveness replies; everything else is telemetry written to the display.
// It reports whether the caller should redraw the prompt: false when the data
// held only liveness replies, since those already redrew on a state change.
func (s *Session) HandleIncoming(raw string) bool {
	var telemetry strings.Builder
	replies := 0

	for _, line := range strings.SplitAfter(raw, "\n") {
		if line == "" {
			continue
		}
		idx := strings.Index(line, pongMarker)
		if idx < 0 {
			telemetry.WriteString(line)
			continue
		}
		if prefix := line[:idx]; strings.TrimSpace(prefix) != "" {
			telemetry.WriteString(prefix + "\n")
		}
		token := ""
		if fields := strings.Fields(line[idx+len(pongMarker):]); len(fields) > 0 {
			token = fields[0]
		}
		s.acknowledge(token)
		replies++
	}

	if telemetry.Len() == 0 && replies > 0 {
		return false
	}

	text := telemetry.String()
	s.display.Print(text)
	if strings.TrimSpace(text) != "" {
		_, id := s.current()
		s.record(journal.KindTelemetry, id, text)
	}
	return true
}

// acknowledge books a liveness reply and redraws when the stage changed.
func (s *Session) acknowledge(token string) {
	state := podstate.Parse(token)

	s.mu.Lock()
	s.lastPing = s.now()
	s.received++
	changed := !s.hasState || s.state != state
	s.state = state
	s.hasState = true
	id := s.connID
	s.mu.Unlock()

	if !changed {
		return
	}
	logger.Info("Pod state changed", "address", s.address, "state", state.Name())
	s.record(journal.KindState, id, state.Name())
	s.display.Redraw()
}

// Ping sends a liveness ping and closes the session when the pod has gone
// quiet for longer than the timeout. No timeout is declared before the first
// reply of a connection has arrived.
func (s *Session) Ping(now time.Time) {
	s.Send(PingText)

	s.mu.Lock()
	conn := s.conn
	id := s.connID
	elapsed := now.Sub(s.lastPing)
	timedOut := conn != nil && s.received > 0 && elapsed > s.pingTimeout
	s.mu.Unlock()

	if !timedOut {
		return
	}

	logger.Warning("Heartbeat timed out", "address", s.address, "elapsed", elapsed.String(), "threshold", s.pingTimeout.String())
	s.display.Notice("PING TIMEOUT!")
	s.record(journal.KindTimeout, id, elapsed.String())
	s.closeConn(conn, ErrTimeout.Error())
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Address:   s.address,
		Connected: s.conn != nil,
		ConnID:    s.connID,
		State:     s.state,
		HasState:  s.hasState,
		Received:  s.received,
		LastPing:  s.lastPing,
	}
}

func (s *Session) record(kind journal.Kind, connID, detail string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(journal.Event{
		ConnID:  connID,
		Address: s.address,
		Kind:    kind,
		Detail:  detail,
		At:      s.now(),
	})
}

type discardDisplay struct{}

func (discardDisplay) Print(string)  {}
func (discardDisplay) Notice(string) {}
func (discardDisplay) Redraw()       {}
