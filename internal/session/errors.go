package session

import (
	"errors"
	"fmt"
)

var (
	// ErrIO marks a send or receive failure. The session treats it as an
	// implicit disconnect and never returns it to callers.
	ErrIO = errors.New("pod i/o failure")

	// ErrTimeout marks a heartbeat that saw no liveness reply within the
	// configured threshold.
	ErrTimeout = errors.New("ping timeout")
)

// ConnectError is returned by Connect when the pod could not be reached.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}
