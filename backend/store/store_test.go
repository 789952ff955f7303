package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// Both backends must satisfy the same contract.
func backends(t *testing.T) map[string]SessionStore {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("opening sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]SessionStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rev, err := s.Save(ctx, &Record{ID: "s1", Payload: []byte(`{"phase":"discover"}`)})
			if err != nil {
				t.Fatalf("initial save: %v", err)
			}
			if rev != 1 {
				t.Errorf("revision = %d, want 1", rev)
			}

			rec, err := s.Load(ctx, "s1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if string(rec.Payload) != `{"phase":"discover"}` {
				t.Errorf("payload = %s", rec.Payload)
			}
			if rec.Revision != 1 {
				t.Errorf("loaded revision = %d, want 1", rec.Revision)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSaveRevisionConflict(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rev, err := s.Save(ctx, &Record{ID: "s1", Payload: []byte("a")})
			if err != nil {
				t.Fatalf("initial save: %v", err)
			}

			// Stale revision must be rejected.
			if _, err := s.Save(ctx, &Record{ID: "s1", Revision: rev + 5, Payload: []byte("b")}); !errors.Is(err, ErrRevisionConflict) {
				t.Errorf("stale save err = %v, want ErrRevisionConflict", err)
			}
			// Duplicate insert must be rejected.
			if _, err := s.Save(ctx, &Record{ID: "s1", Payload: []byte("c")}); !errors.Is(err, ErrRevisionConflict) {
				t.Errorf("duplicate insert err = %v, want ErrRevisionConflict", err)
			}

			// Correct revision advances.
			next, err := s.Save(ctx, &Record{ID: "s1", Revision: rev, Payload: []byte("d")})
			if err != nil {
				t.Fatalf("follow-up save: %v", err)
			}
			if next != rev+1 {
				t.Errorf("revision = %d, want %d", next, rev+1)
			}
		})
	}
}

func TestSQLiteConflictDetectionIsCodeBased(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("opening sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	// A NOT NULL violation is a real error, not a revision conflict.
	_, err = s.Save(ctx, &Record{ID: "s1", Payload: nil})
	if err == nil {
		t.Fatal("insert with NULL payload succeeded")
	}
	if errors.Is(err, ErrRevisionConflict) {
		t.Errorf("NOT NULL violation reported as revision conflict: %v", err)
	}

	// A duplicate primary key is.
	if _, err := s.Save(ctx, &Record{ID: "s2", Payload: []byte("a")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Save(ctx, &Record{ID: "s2", Payload: []byte("b")}); !errors.Is(err, ErrRevisionConflict) {
		t.Errorf("duplicate insert err = %v, want ErrRevisionConflict", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, id := range []string{"a", "b"} {
				if _, err := s.Save(ctx, &Record{ID: id, Payload: []byte("x")}); err != nil {
					t.Fatalf("save %s: %v", id, err)
				}
			}

			if err := s.Delete(ctx, "a"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := s.Delete(ctx, "a"); err != nil {
				t.Errorf("deleting an absent id must not error: %v", err)
			}

			ids, err := s.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(ids) != 1 || ids[0] != "b" {
				t.Errorf("ids = %v, want [b]", ids)
			}
		})
	}
}
