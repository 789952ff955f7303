package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/intentlabs/transformd/backend/event"
	"github.com/intentlabs/transformd/backend/store"
	"github.com/intentlabs/transformd/shared/fault"
)

// EvictIdle removes every session whose last activity is older than ttl
// and reports how many were removed. Each candidate is checked under its
// session lock so a turn in flight is never evicted mid-pipeline.
func (m *Manager) EvictIdle(ctx context.Context, ttl time.Duration) (int, error) {
	ids, err := m.sessions.List(ctx)
	if err != nil {
		return 0, fault.Wrap(fault.KindStoreUnavailable, err, "listing sessions for eviction")
	}

	evicted := 0
	cutoff := m.now().UTC().Add(-ttl)
	for _, id := range ids {
		removed, err := m.evictOne(ctx, id, cutoff)
		if err != nil {
			m.log.Warn("eviction skipped session",
				slog.String("session_id", id),
				slog.String("error", err.Error()))
			continue
		}
		if removed {
			evicted++
		}
	}

	if evicted > 0 {
		m.log.Info("evicted idle sessions", slog.Int("count", evicted))
	}
	return evicted, nil
}

func (m *Manager) evictOne(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	unlock := m.lock(id)
	defer unlock()

	rec, err := m.sessions.Load(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	sess, err := unmarshalSession(rec.Payload, rec.Revision, m.catalog)
	if err != nil {
		return false, err
	}
	if sess.LastActive.After(cutoff) {
		return false, nil
	}

	if err := m.sessions.Delete(ctx, id); err != nil {
		return false, err
	}

	event.Publish(m.bus, event.SessionEvicted{
		SessionID: id,
		IdleFor:   m.now().UTC().Sub(sess.LastActive),
	})
	return true, nil
}

// RunEviction sweeps on the given interval until ctx is cancelled.
func (m *Manager) RunEviction(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.EvictIdle(ctx, ttl); err != nil {
				m.log.Error("eviction sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
