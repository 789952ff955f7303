// Package session owns conversation lifecycle: starting sessions,
// running each user message through extraction and phase progression,
// and persisting the result. It is the only package that composes the
// fact store, flow machine, extraction adapter, and question selector.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/intentlabs/transformd/backend/domain"
	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/flow"
	"github.com/intentlabs/transformd/backend/model"
)

// Message is one turn of a session's transcript.
type Message struct {
	Role model.Role `json:"role"`
	Text string     `json:"text"`
	At   time.Time  `json:"at"`
}

// Session is the in-memory working form of one conversation. It is
// rebuilt from its persisted record on every request; the manager's
// per-session lock serializes concurrent use.
type Session struct {
	ID         string
	Domain     *domain.Domain
	Facts      *fact.Store
	Machine    *flow.Machine
	Log        []Message
	CreatedAt  time.Time
	LastActive time.Time

	// revision is the store revision the session was loaded at.
	revision int64
}

// record is the serialized form written to the session store.
type record struct {
	ID         string      `json:"id"`
	Domain     string      `json:"domain"`
	Facts      *fact.Store `json:"facts"`
	Machine    flow.State  `json:"machine"`
	Log        []Message   `json:"log"`
	CreatedAt  time.Time   `json:"created_at"`
	LastActive time.Time   `json:"last_active"`
}

func (s *Session) marshal() ([]byte, error) {
	return json.Marshal(record{
		ID:         s.ID,
		Domain:     s.Domain.Name,
		Facts:      s.Facts,
		Machine:    s.Machine.State(),
		Log:        s.Log,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive,
	})
}

func unmarshalSession(payload []byte, revision int64, catalog *domain.Catalog) (*Session, error) {
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decoding session record: %w", err)
	}
	dom, ok := catalog.Get(rec.Domain)
	if !ok {
		return nil, fmt.Errorf("session %s references unknown domain %q", rec.ID, rec.Domain)
	}
	if rec.Facts == nil {
		rec.Facts = fact.NewStore()
	}
	return &Session{
		ID:         rec.ID,
		Domain:     dom,
		Facts:      rec.Facts,
		Machine:    flow.Restore(dom.Registry(), rec.Machine),
		Log:        rec.Log,
		CreatedAt:  rec.CreatedAt,
		LastActive: rec.LastActive,
		revision:   revision,
	}, nil
}

// append records a transcript turn and bumps the activity stamp.
func (s *Session) append(role model.Role, text string, at time.Time) {
	s.Log = append(s.Log, Message{Role: role, Text: text, At: at})
	s.LastActive = at
}

// recentTurns returns up to n trailing transcript turns as collaborator
// context.
func (s *Session) recentTurns(n int) []model.Turn {
	logLen := len(s.Log)
	if n > 0 && logLen > n {
		logLen = n
	}
	turns := make([]model.Turn, 0, logLen)
	for _, m := range s.Log[len(s.Log)-logLen:] {
		turns = append(turns, model.Turn{Role: m.Role, Text: m.Text})
	}
	return turns
}
