package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "journal.db")
	j, err := Open("sqlite", path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return j, path
}

func TestRecordAndReopen(t *testing.T) {
	j, path := openTestJournal(t)

	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	j.Record(Event{ConnID: "c1", Address: "127.0.0.1:7779", Kind: KindConnected, At: at})
	j.Record(Event{ConnID: "c1", Address: "127.0.0.1:7779", Kind: KindCommand, Detail: "help", At: at.Add(time.Second)})
	j.Record(Event{ConnID: "c1", Address: "127.0.0.1:7779", Kind: KindState, Detail: "BOOT", At: at.Add(2 * time.Second)})

	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	events, err := reopened.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	wantKinds := []Kind{KindConnected, KindCommand, KindState}
	for i, ev := range events {
		if ev.Kind != wantKinds[i] {
			t.Errorf("events[%d].Kind = %q, want %q", i, ev.Kind, wantKinds[i])
		}
		if ev.ConnID != "c1" {
			t.Errorf("events[%d].ConnID = %q, want %q", i, ev.ConnID, "c1")
		}
	}
	if events[1].Detail != "help" {
		t.Errorf("command detail = %q, want %q", events[1].Detail, "help")
	}
	if !events[2].At.Equal(at.Add(2 * time.Second)) {
		t.Errorf("state event time = %v, want %v", events[2].At, at.Add(2*time.Second))
	}
}

func TestRecentLimit(t *testing.T) {
	j, path := openTestJournal(t)
	for i := 0; i < 5; i++ {
		j.Record(Event{ConnID: "c", Address: "a", Kind: KindTelemetry, Detail: string(rune('a' + i))})
	}
	j.Close()

	reopened, err := Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	events, err := reopened.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Detail != "d" || events[1].Detail != "e" {
		t.Errorf("Recent(2) details = %q, %q, want %q, %q", events[0].Detail, events[1].Detail, "d", "e")
	}
}

func TestRecordAfterClose(t *testing.T) {
	j, _ := openTestJournal(t)
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Must not panic on the closed channel.
	j.Record(Event{Kind: KindCommand})

	if err := j.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	j.Record(Event{Kind: KindCommand})
	if err := j.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
