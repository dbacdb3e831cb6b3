// Package journal persists an audit trail of a console run: connections,
// operator commands, state transitions and heartbeat timeouts.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/openloop/podctl/internal/logger"
)

// Kind classifies a journal event.
type Kind string

const (
	KindConnected    Kind = "connected"
	KindDisconnected Kind = "disconnected"
	KindCommand      Kind = "command"
	KindState        Kind = "state"
	KindTimeout      Kind = "timeout"
	KindTelemetry    Kind = "telemetry"
)

// Event is one journal row.
type Event struct {
	ID      int64
	ConnID  string
	Address string
	Kind    Kind
	Detail  string
	At      time.Time
}

// bufferSize bounds the number of events waiting to be written.
const bufferSize = 256

// Journal writes events on a background goroutine so a slow database never
// stalls the console.
type Journal struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder

	mu      sync.Mutex
	closed  bool
	dropped int
	events  chan Event
	done    chan struct{}
}

// Open opens or creates the journal. For sqlite dsn is a file path; for
// postgres it is a lib/pq connection string.
func Open(driver, dsn string) (*Journal, error) {
	dialect := NewDialect(DialectType(driver))

	if _, ok := dialect.(*SQLiteDialect); ok {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize journal: %w", err)
		}
	}

	j := &Journal{
		db:      db,
		dialect: dialect,
		qb:      NewQueryBuilder(dialect),
		events:  make(chan Event, bufferSize),
		done:    make(chan struct{}),
	}

	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run journal migrations: %w", err)
	}

	go j.writeLoop()
	return j, nil
}

func (j *Journal) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			` + j.dialect.IDColumn() + `,
			conn_id TEXT NOT NULL,
			address TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL,
			recorded_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_conn ON events(conn_id)`,
	}

	for _, m := range migrations {
		if _, err := j.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Record queues an event. It never blocks; when the buffer is full the event
// is dropped and counted. Record on a nil or closed Journal is a no-op.
func (j *Journal) Record(ev Event) {
	if j == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.events <- ev:
	default:
		j.dropped++
		logger.Warning("Journal buffer full, dropping event", "kind", ev.Kind, "dropped", j.dropped)
	}
}

func (j *Journal) writeLoop() {
	defer close(j.done)

	insert := j.qb.Build(`INSERT INTO events (conn_id, address, kind, detail, recorded_at) VALUES (?, ?, ?, ?, ?)`)
	for ev := range j.events {
		_, err := j.db.Exec(insert, ev.ConnID, ev.Address, string(ev.Kind), ev.Detail, ev.At.UTC().UnixMilli())
		if err != nil {
			logger.Error("Failed to write journal event", "kind", ev.Kind, "error", err)
		}
	}
}

// Recent returns up to n of the latest events in chronological order.
func (j *Journal) Recent(ctx context.Context, n int) ([]Event, error) {
	query := j.qb.Build(`SELECT id, conn_id, address, kind, detail, recorded_at FROM events ORDER BY id DESC LIMIT ?`)
	rows, err := j.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var kind string
		var at int64
		if err := rows.Scan(&ev.ID, &ev.ConnID, &ev.Address, &kind, &ev.Detail, &at); err != nil {
			return nil, fmt.Errorf("failed to scan journal event: %w", err)
		}
		ev.Kind = Kind(kind)
		ev.At = time.UnixMilli(at).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, k := 0, len(events)-1; i < k; i, k = i+1, k-1 {
		events[i], events[k] = events[k], events[i]
	}
	return events, nil
}

// Close flushes queued events and closes the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.events)
	j.mu.Unlock()

	<-j.done
	return j.db.Close()
}
