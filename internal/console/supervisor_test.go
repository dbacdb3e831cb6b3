package console

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openloop/podctl/internal/heartbeat"
)

func newSupervised(sess Session, input <-chan string) (*Supervisor, *syncBuffer) {
	out := &syncBuffer{}
	con := New(out, nil)
	con.SetSource(sess)
	loop := NewLoop(sess, con, input, LoopConfig{
		RetryDelay:   5 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})
	return NewSupervisor(loop, nil), out
}

func TestSupervisorExitsZeroOnInputEnd(t *testing.T) {
	pod := newPodServer(t)
	input := make(chan string)
	loop, sess := newTestLoop(pod.addr(), nil, &syncBuffer{}, input)

	var beats atomic.Int32
	heart := heartbeat.New(5*time.Millisecond, func(now time.Time) {
		beats.Add(1)
		sess.Ping(now)
	})
	sup := NewSupervisor(loop, heart)

	code := make(chan int, 1)
	go func() { code <- sup.Run(context.Background()) }()

	pod.nextLine(t)
	waitFor(t, "heartbeat pings", func() bool { return beats.Load() >= 2 })
	close(input)

	select {
	case got := <-code:
		if got != ExitOK {
			t.Errorf("Run() = %d, want %d", got, ExitOK)
		}
	case <-time.After(testWait):
		t.Fatal("Run() did not return after input closed")
	}

	select {
	case <-heart.Done():
	default:
		t.Error("heartbeat still running after Run returned")
	}
	if sess.IsConnected() {
		t.Error("session still connected after Run returned")
	}
}

func TestSupervisorExitsOneOnInterrupt(t *testing.T) {
	sess := &fakeSession{}
	sup, out := newSupervised(sess, make(chan string))

	ctx, cancel := context.WithCancel(context.Background())
	code := make(chan int, 1)
	go func() { code <- sup.Run(ctx) }()

	waitFor(t, "connect attempts", func() bool { return sess.connectCalls() >= 2 })
	cancel()

	select {
	case got := <-code:
		if got != ExitInterrupted {
			t.Errorf("Run() = %d, want %d", got, ExitInterrupted)
		}
	case <-time.After(testWait):
		t.Fatal("Run() did not return after cancel")
	}

	if sess.closed == 0 {
		t.Error("session was not closed on shutdown")
	}
	if s := out.String(); s[len(s)-1] != '\n' {
		t.Errorf("output should end on a fresh line, got %q", s)
	}
}

func TestSupervisorRestartsAfterPanic(t *testing.T) {
	sess := &fakeSession{panicOn: map[int]bool{1: true}}
	sup, _ := newSupervised(sess, make(chan string))

	ctx, cancel := context.WithCancel(context.Background())
	code := make(chan int, 1)
	go func() { code <- sup.Run(ctx) }()

	// The second call can only come from a restarted loop.
	waitFor(t, "the loop to restart", func() bool { return sess.connectCalls() >= 2 })
	cancel()

	select {
	case got := <-code:
		if got != ExitInterrupted {
			t.Errorf("Run() = %d, want %d", got, ExitInterrupted)
		}
	case <-time.After(testWait):
		t.Fatal("Run() did not return after cancel")
	}

	if got := sup.Restarts(); got != 1 {
		t.Errorf("Restarts() = %d, want 1", got)
	}
}

func TestPanicErrorMessage(t *testing.T) {
	err := &panicError{value: "boom"}
	if got := err.Error(); got != "panic: boom" {
		t.Errorf("Error() = %q, want %q", got, "panic: boom")
	}
}
