package console

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/openloop/podctl/internal/heartbeat"
	"github.com/openloop/podctl/internal/logger"
)

// Process exit statuses.
const (
	ExitOK          = 0
	ExitInterrupted = 1
	ExitFailure     = 1
	ExitUsage       = 2
)

// panicError carries a panic recovered from the loop.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// Supervisor keeps the loop running until the operator leaves, and owns the
// heartbeat for the lifetime of the process.
type Supervisor struct {
	loop       *Loop
	heart      *heartbeat.Heart
	retryDelay time.Duration
	restarts   int
}

// NewSupervisor returns a supervisor for loop. heart may be nil.
func NewSupervisor(loop *Loop, heart *heartbeat.Heart) *Supervisor {
	return &Supervisor{
		loop:       loop,
		heart:      heart,
		retryDelay: loop.retry,
	}
}

// Restarts returns how many times the loop was restarted after a failure.
func (s *Supervisor) Restarts() int {
	return s.restarts
}

// Run starts the heartbeat and runs the loop, restarting it after any failure
// other than input end or interruption. It returns the process exit status.
func (s *Supervisor) Run(ctx context.Context) int {
	if s.heart != nil {
		go s.heart.Start()
	}
	defer s.shutdown()

	for {
		err := s.runOnce(ctx)

		switch {
		case errors.Is(err, ErrInputClosed):
			logger.Always("Operator input closed, exiting")
			return ExitOK
		case errors.Is(err, ErrInterrupted):
			logger.Always("Interrupted, exiting")
			return ExitInterrupted
		}

		var stack []byte
		var pe *panicError
		if errors.As(err, &pe) {
			stack = pe.stack
		} else {
			stack = debug.Stack()
		}
		s.restarts++
		logger.Error("Console loop failed, restarting", "error", err, "restarts", s.restarts, "stack", string(stack))

		timer := time.NewTimer(s.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ExitInterrupted
		case <-timer.C:
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return s.loop.Run(ctx)
}

func (s *Supervisor) shutdown() {
	if s.heart != nil {
		s.heart.Stop()
		<-s.heart.Done()
	}
	s.loop.session.Close()
	s.loop.console.Finish()
}
