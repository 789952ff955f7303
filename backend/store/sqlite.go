package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	revision   INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteStore persists sessions in a single-file SQLite database. WAL
// mode keeps readers unblocked during writes; busy_timeout absorbs the
// brief lock contention a concurrent sweep can cause.
type SQLiteStore struct {
	db *sql.DB
}

var _ SessionStore = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	// modernc.org/sqlite serializes at the connection level; a single
	// connection avoids SQLITE_BUSY on concurrent writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying session schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT revision, payload, updated_at FROM sessions WHERE id = ?`, id)

	var rec Record
	var updatedAt int64
	rec.ID = id
	if err := row.Scan(&rec.Revision, &rec.Payload, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &rec, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Record) (int64, error) {
	now := time.Now().UTC()
	next := rec.Revision + 1

	if rec.Revision == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, revision, payload, updated_at) VALUES (?, ?, ?, ?)`,
			rec.ID, next, rec.Payload, now.Unix())
		if err != nil {
			if isUniqueViolation(err) {
				return 0, ErrRevisionConflict
			}
			return 0, fmt.Errorf("inserting session %s: %w", rec.ID, err)
		}
		return next, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revision = ?, payload = ?, updated_at = ? WHERE id = ? AND revision = ?`,
		next, rec.Payload, now.Unix(), rec.ID, rec.Revision)
	if err != nil {
		return 0, fmt.Errorf("updating session %s: %w", rec.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("updating session %s: %w", rec.ID, err)
	}
	if affected == 0 {
		return 0, ErrRevisionConflict
	}
	return next, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listing sessions: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation matches only the primary-key/unique extended result
// codes; other constraint failures (NOT NULL, CHECK) are real errors,
// not revision conflicts.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}
