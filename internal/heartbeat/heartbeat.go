// Package heartbeat drives a periodic callback on its own goroutine.
package heartbeat

import (
	"sync"
	"time"
)

// DefaultInterval matches the console's default ping rate.
const DefaultInterval = 200 * time.Millisecond

// Heart invokes a callback, sleeps for the interval, and repeats until
// stopped. Stopping is cooperative: a callback already running completes.
type Heart struct {
	interval time.Duration
	callback func(now time.Time)

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a heart that is not yet beating.
func New(interval time.Duration, callback func(now time.Time)) *Heart {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Heart{
		interval: interval,
		callback: callback,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the beat loop on the calling goroutine and returns once Stop has
// been observed. A heart can only be started once.
func (h *Heart) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	defer close(h.done)

	timer := time.NewTimer(h.interval)
	defer timer.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		default:
		}

		h.callback(time.Now())

		timer.Reset(h.interval)
		select {
		case <-timer.C:
		case <-h.stopChan:
			return
		}
	}
}

// Stop asks the loop to exit before its next beat. It is safe to call more
// than once and from any goroutine.
func (h *Heart) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Done is closed when Start returns.
func (h *Heart) Done() <-chan struct{} {
	return h.done
}

// Interval returns the sleep between beats.
func (h *Heart) Interval() time.Duration {
	return h.interval
}
