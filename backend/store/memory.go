package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It backs tests and the
// memory driver; everything is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

var _ SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.ID]
	switch {
	case rec.Revision == 0 && ok:
		return 0, ErrRevisionConflict
	case rec.Revision != 0 && (!ok || existing.Revision != rec.Revision):
		return 0, ErrRevisionConflict
	}

	next := cloneRecord(rec)
	next.Revision = rec.Revision + 1
	next.UpdatedAt = time.Now().UTC()
	s.records[rec.ID] = next
	return next.Revision, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneRecord(rec *Record) *Record {
	clone := *rec
	clone.Payload = append([]byte(nil), rec.Payload...)
	return &clone
}
