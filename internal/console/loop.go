package console

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openloop/podctl/internal/logger"
	"github.com/openloop/podctl/internal/session"
)

var (
	// ErrInputClosed ends the loop when the operator's input reaches EOF.
	ErrInputClosed = errors.New("operator input closed")

	// ErrInterrupted ends the loop when its context is cancelled.
	ErrInterrupted = errors.New("interrupted")
)

const (
	DefaultRetryDelay   = time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Session is the part of *session.Session the loop drives.
type Session interface {
	Address() string
	Connect(ctx context.Context) error
	Close()
	IsConnected() bool
	ReceiveOn(connID string) (string, bool)
	HandleIncoming(raw string) bool
	SendCommand(cmd string)
	Snapshot() session.Snapshot
}

// State is the loop's connection phase.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Terminated
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Terminated:
		return "TERMINATED"
	default:
		return "INVALID"
	}
}

// LoopConfig holds loop timing and the command sent after each connect.
type LoopConfig struct {
	RetryDelay       time.Duration
	PollInterval     time.Duration
	DiscoveryCommand string
}

// Loop connects the session, then multiplexes pod data, operator lines and a
// redraw tick until the connection drops, and starts over.
type Loop struct {
	session   Session
	console   *Console
	input     <-chan string
	retry     time.Duration
	poll      time.Duration
	discovery string

	state atomic.Int32
}

// NewLoop creates a loop reading operator lines from input.
func NewLoop(sess Session, con *Console, input <-chan string, cfg LoopConfig) *Loop {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Loop{
		session:   sess,
		console:   con,
		input:     input,
		retry:     cfg.RetryDelay,
		poll:      cfg.PollInterval,
		discovery: cfg.DiscoveryCommand,
	}
}

// State returns the current phase.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	if prev := State(l.state.Swap(int32(s))); prev != s {
		logger.Debug("Loop state changed", "from", prev.String(), "to", s.String())
	}
}

// Run drives the session until ctx is cancelled (ErrInterrupted) or input
// ends (ErrInputClosed). Lost connections are re-established indefinitely.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(Terminated)

	for {
		l.setState(Disconnected)
		if err := l.connect(ctx); err != nil {
			return err
		}

		l.setState(Connected)
		if err := l.serve(ctx); err != nil {
			return err
		}
	}
}

// connect retries until the session holds a connection.
func (l *Loop) connect(ctx context.Context) error {
	l.setState(Connecting)
	l.console.Print("Connecting to " + l.session.Address() + "\n")

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return ErrInterrupted
		}

		err := l.session.Connect(ctx)
		if err == nil {
			l.console.SetConnectError(nil)
			l.console.Redraw()
			return nil
		}

		logger.Debug("Connect attempt failed", "attempt", attempt, "error", err)
		l.console.SetConnectError(err)
		l.console.Redraw()

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrInterrupted
		case <-timer.C:
		}
	}
}

// serve runs while the session is connected. It returns nil when the
// connection drops.
func (l *Loop) serve(ctx context.Context) error {
	incoming := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go l.pump(l.session.Snapshot().ConnID, incoming, done)

	if l.discovery != "" {
		l.session.SendCommand(l.discovery)
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for l.session.IsConnected() {
		select {
		case <-ctx.Done():
			return ErrInterrupted

		case data := <-incoming:
			if l.session.HandleIncoming(data) {
				l.console.Redraw()
			}

		case line, ok := <-l.input:
			if !ok {
				return ErrInputClosed
			}
			if strings.TrimSpace(line) == "" {
				l.console.Redraw()
				continue
			}
			l.session.SendCommand(line)

		case <-ticker.C:
			if !l.session.Snapshot().HasState {
				l.console.Redraw()
			}
		}
	}

	logger.Debug("Connection lost", "address", l.session.Address())
	return nil
}

// pump forwards inbound chunks from connection connID until it closes or
// serve returns.
func (l *Loop) pump(connID string, out chan<- string, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		data, ok := l.session.ReceiveOn(connID)
		if !ok {
			return
		}
		if data == "" {
			continue
		}

		select {
		case out <- data:
		case <-done:
			return
		}
	}
}
