// Package journal appends every engine event to a SQLite log so a session
// can be replayed or audited after the fact. It writes raw SQL on purpose:
// the journal must keep working even when the GORM schema is mid-migration.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"ordex/internal/events"
	"ordex/internal/logger"
)

type Journal struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func New(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS engine_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_engine_events_kind_ts ON engine_events(kind, ts)`)
	return err
}

// Append writes one event. Payload marshalling failures are logged and the
// event is stored with an empty payload rather than lost.
func (j *Journal) Append(ctx context.Context, evt events.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		logger.Warnf("journal: payload marshal failed for %s: %v", evt.Kind, err)
		payload = []byte("{}")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return fmt.Errorf("journal is closed")
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO engine_events (ts, kind, payload) VALUES (?, ?, ?)`,
		evt.At.UnixMilli(), string(evt.Kind), string(payload))
	return err
}

// Entry is one replayed journal row.
type Entry struct {
	ID      int64           `json:"id"`
	TS      int64           `json:"ts"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// List returns the most recent entries, optionally filtered by kind.
func (j *Journal) List(ctx context.Context, kind string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, ts, kind, payload FROM engine_events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, fmt.Errorf("journal is closed")
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.ID, &e.TS, &e.Kind, &payload); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Run drains the event channel into the journal until the context ends or
// the channel closes. Meant to be started as a goroutine on a bus
// subscription.
func (j *Journal) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := j.Append(ctx, evt); err != nil {
				logger.Errorf("journal: append %s failed: %v", evt.Kind, err)
			}
		}
	}
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
