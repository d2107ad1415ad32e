// Package offline keeps the student agent working with no connectivity: a
// durable local mirror of the in-flight attempt, a read-only catalog cache
// for local scoring, and the reconciliation that replays buffered work once
// the gateway is reachable again.
package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	_ "modernc.org/sqlite" // driver: sqlite
)

// SchemaVersion tags every persisted blob. A mismatching version on load is
// discarded rather than misread; buffered state does not survive schema
// changes.
const SchemaVersion = 1

const (
	keyAttempt  = "attempt"
	keyCache    = "quiz_cache"
	keyIdentify = "pending_identify"
)

var (
	ErrNotCached = errors.New("offline: quiz not cached yet")
	ErrNoAttempt = errors.New("offline: no local attempt")
)

// State is the durable local store, one sqlite file on the kiosk.
type State struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*State, error) {
	if path == "" {
		path = "file:quizdeck-kiosk.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS state (
  key TEXT PRIMARY KEY,
  version INTEGER NOT NULL,
  data TEXT NOT NULL
);
`); err != nil {
		db.Close()
		return nil, err
	}
	return &State{db: db}, nil
}

func (s *State) Close() error { return s.db.Close() }

// load reads a blob into v. Returns false when absent or persisted under a
// different schema version (the stale row is dropped).
func (s *State) load(ctx context.Context, key string, v any) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT version, data FROM state WHERE key=$1`, key)
	var version int
	var raw string
	if err := row.Scan(&version, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if version != SchemaVersion {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM state WHERE key=$1`, key)
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *State) save(ctx context.Context, key string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO state (key,version,data) VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE SET version=EXCLUDED.version, data=EXCLUDED.data`,
		key, SchemaVersion, string(buf))
	return err
}

func (s *State) drop(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key=$1`, key)
	return err
}
