// Package store persists session records. Sessions serialize themselves
// to an opaque payload; the store only knows identities, revisions, and
// bytes. Saves are compare-and-swap on revision so a lost lock or a
// second process cannot silently clobber newer state.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for the id.
	ErrNotFound = errors.New("store: session not found")
	// ErrRevisionConflict is returned when a save's expected revision does
	// not match the stored one.
	ErrRevisionConflict = errors.New("store: revision conflict")
)

// Record is one persisted session.
type Record struct {
	ID        string
	Revision  int64
	Payload   []byte
	UpdatedAt time.Time
}

// SessionStore is implemented by every session persistence backend.
type SessionStore interface {
	// Load returns the record for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Record, error)
	// Save writes rec. Revision 0 inserts a new record; any other value
	// must match the stored revision or ErrRevisionConflict is returned.
	// On success the record's revision is incremented and returned.
	Save(ctx context.Context, rec *Record) (int64, error)
	// Delete removes the record for id. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, id string) error
	// List returns the ids of all persisted sessions.
	List(ctx context.Context) ([]string, error)
	Close() error
}
