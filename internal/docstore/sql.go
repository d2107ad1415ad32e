package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SQLStore keeps every document as a JSON row in a single documents table,
// addressed by path. Works against sqlite and postgres through database/sql.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
	// lockClause is appended to reads inside a write transaction. Postgres
	// needs FOR UPDATE there: at read-committed isolation two racing
	// UpdateIf calls would otherwise both see the old row and both pass
	// the condition. Sqlite serializes writers and rejects the syntax.
	lockClause string
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// NewPostgresStore returns a store whose conditional updates take row locks.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now, lockClause: " FOR UPDATE"}
}

// EnsureSchema creates the documents table if missing. The DDL is the common
// subset both drivers accept.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
  path TEXT PRIMARY KEY,
  parent TEXT NOT NULL,
  data TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, path string) (Doc, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path=$1`, path)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeDoc(raw)
}

func (s *SQLStore) Set(ctx context.Context, path string, fields Doc, merge bool) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		dst, err := s.getForUpdate(ctx, tx, path)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if dst == nil || !merge {
			dst = Doc{}
		}
		apply(dst, fields, s.now())
		return upsert(ctx, tx, path, dst)
	})
}

func (s *SQLStore) Update(ctx context.Context, path string, fields Doc) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		dst, err := s.getForUpdate(ctx, tx, path)
		if err != nil {
			return err
		}
		apply(dst, fields, s.now())
		return upsert(ctx, tx, path, dst)
	})
}

func (s *SQLStore) UpdateIf(ctx context.Context, path string, cond Doc, fields Doc) (bool, error) {
	ok := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		dst, err := s.getForUpdate(ctx, tx, path)
		if err != nil {
			return err
		}
		for k, want := range cond {
			if !looseEqual(dst[k], want) {
				return nil
			}
		}
		apply(dst, fields, s.now())
		if err := upsert(ctx, tx, path, dst); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}

func (s *SQLStore) Delete(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path=$1`, path)
	return err
}

func (s *SQLStore) Add(ctx context.Context, collection string, fields Doc) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection+"/"+id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, data FROM documents WHERE parent=$1`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		d, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{ID: ID(path), Data: d})
	}
	return out, rows.Err()
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) getForUpdate(ctx context.Context, tx *sql.Tx, path string) (Doc, error) {
	row := tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE path=$1`+s.lockClause, path)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeDoc(raw)
}

func upsert(ctx context.Context, tx *sql.Tx, path string, d Doc) error {
	buf, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO documents (path,parent,data) VALUES ($1,$2,$3)
		ON CONFLICT (path) DO UPDATE SET data=EXCLUDED.data`,
		path, Parent(path), string(buf))
	return err
}

func decodeDoc(raw string) (Doc, error) {
	var d Doc
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return d, nil
}
