package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intentlabs/transformd/backend/domain"
	"github.com/intentlabs/transformd/backend/event"
	"github.com/intentlabs/transformd/backend/extract"
	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/flow"
	"github.com/intentlabs/transformd/backend/model"
	"github.com/intentlabs/transformd/backend/phase"
	"github.com/intentlabs/transformd/backend/question"
	"github.com/intentlabs/transformd/backend/store"
	"github.com/intentlabs/transformd/shared/fault"
)

// Reply is what one conversation turn returns to the caller.
type Reply struct {
	SessionID string `json:"session_id"`
	Domain    string `json:"domain"`
	// Phase is the session's phase after this turn.
	Phase phase.Phase `json:"phase"`
	// Terminal is true once the session has produced every output.
	Terminal bool `json:"terminal"`
	// Outputs lists the phase outputs newly completed by this turn.
	Outputs []*flow.Output `json:"outputs,omitempty"`
	// Question is the next prompt, absent on terminal sessions.
	Question *question.Question `json:"question,omitempty"`
	// Progress is the fraction of all requirements currently satisfied.
	Progress float64 `json:"progress"`
	// Notice carries a user-facing remark, e.g. that the last message
	// could not be processed and should be rephrased.
	Notice string `json:"notice,omitempty"`
}

// PhaseSummary is one phase's slot in a session summary.
type PhaseSummary struct {
	Phase     phase.Phase  `json:"phase"`
	Available bool         `json:"available"`
	Output    *flow.Output `json:"output,omitempty"`
}

// Summary is the point-in-time view of a session's progress and outputs.
type Summary struct {
	SessionID string         `json:"session_id"`
	Domain    string         `json:"domain"`
	Phase     phase.Phase    `json:"phase"`
	Terminal  bool           `json:"terminal"`
	Progress  float64        `json:"progress"`
	Phases    []PhaseSummary `json:"phases"`
}

// Stats is the fleet-level counters exposed on the health surface.
type Stats struct {
	Sessions int            `json:"sessions"`
	ByPhase  map[string]int `json:"by_phase"`
}

const extractionNotice = "I couldn't process that message. Could you rephrase?"

// Manager runs conversations. All session access is serialized by a
// per-session lock; the persisted record's revision guards against a
// second process racing the same session.
type Manager struct {
	catalog   *domain.Catalog
	extractor *extract.Adapter
	selector  *question.Selector
	sessions  store.SessionStore
	bus       *event.Bus
	log       *slog.Logger
	now       func() time.Time
	history   int

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is one session's mutex plus the number of goroutines
// holding or waiting for it. The map entry is only dropped when the last
// holder releases, so a waiter never ends up on a mutex that a
// concurrent eviction has replaced.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type ManagerOption func(*Manager)

func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithClock overrides the time source; tests use it to drive TTL
// eviction deterministically.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithHistory sets how many trailing transcript turns the question
// selector sees.
func WithHistory(n int) ManagerOption {
	return func(m *Manager) { m.history = n }
}

func NewManager(catalog *domain.Catalog, provider model.Provider, sessions store.SessionStore, bus *event.Bus, opts ...ManagerOption) *Manager {
	m := &Manager{
		catalog:  catalog,
		sessions: sessions,
		bus:      bus,
		log:      slog.Default(),
		now:      time.Now,
		history:  6,
		locks:    make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.extractor = extract.NewAdapter(provider, m.log)
	m.selector = question.NewSelector(provider, m.history, m.log)
	return m
}

// Start creates a session, detects its domain from the opening message,
// and runs that message through the normal turn pipeline.
func (m *Manager) Start(ctx context.Context, initial string) (*Reply, error) {
	now := m.now().UTC()
	dom := m.catalog.Detect(initial)

	sess := &Session{
		ID:        uuid.NewString(),
		Domain:    dom,
		Facts:     fact.NewStore(),
		Machine:   flow.NewMachine(dom.Registry()),
		CreatedAt: now,
	}

	m.log.Info("session started",
		slog.String("session_id", sess.ID),
		slog.String("domain", dom.Name))
	event.Publish(m.bus, event.SessionCreated{SessionID: sess.ID, Domain: dom.Name, At: now})

	reply := m.turn(ctx, sess, initial)
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	return reply, nil
}

// Continue runs one user message against an existing session. A message
// to a terminal session is appended to the transcript but produces a
// SessionTerminal fault instead of a reply.
func (m *Manager) Continue(ctx context.Context, id, msg string) (*Reply, error) {
	unlock := m.lock(id)
	defer unlock()

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if sess.Machine.Terminal() {
		sess.append(model.RoleUser, msg, m.now().UTC())
		if err := m.save(ctx, sess); err != nil {
			return nil, err
		}
		return nil, fault.New(fault.KindSessionTerminal, "session %s has completed its plan", id)
	}

	reply := m.turn(ctx, sess, msg)
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	return reply, nil
}

// turn is the shared pipeline: record the message, extract facts,
// advance phases, pick the next question.
func (m *Manager) turn(ctx context.Context, sess *Session, msg string) *Reply {
	now := m.now().UTC()
	sess.append(model.RoleUser, msg, now)

	current := sess.Machine.Phase()
	missing := sess.Machine.Missing(sess.Facts)

	// Corrections to already-completed phases must still be recognized,
	// so earlier phases' keys stay extraction targets alongside the
	// current phase's unmet ones.
	targets := append(append([]flow.Requirement(nil), missing...), m.correctionTargets(sess, current)...)

	result := m.extractor.Apply(ctx, msg, current, targets, sess.Facts)

	reply := &Reply{
		SessionID: sess.ID,
		Domain:    sess.Domain.Name,
	}

	if result.Failed {
		m.log.Warn("turn continued without extraction",
			slog.String("session_id", sess.ID),
			slog.String("phase", current.String()))
		event.Publish(m.bus, event.ExtractionFailed{
			SessionID: sess.ID,
			Phase:     current,
			Reason:    result.Cause.Error(),
		})
		reply.Notice = extractionNotice
	}

	for _, f := range result.Applied {
		sess.Machine.RecordWrite(f.Key)
		event.Publish(m.bus, event.FactRecorded{
			SessionID:  sess.ID,
			Key:        f.Key,
			Phase:      f.Phase,
			Confidence: f.Confidence,
		})
	}

	produced := sess.Machine.Observe(sess.Facts)
	for _, out := range produced {
		event.Publish(m.bus, event.PhaseAdvanced{
			SessionID: sess.ID,
			From:      out.Phase,
			To:        out.Phase.Next(),
			Version:   out.Version,
		})
	}

	reply.Phase = sess.Machine.Phase()
	reply.Terminal = sess.Machine.Terminal()
	reply.Outputs = produced
	reply.Progress = sess.Domain.Registry().Progress(sess.Facts)

	if !reply.Terminal {
		q := m.selector.Next(ctx, reply.Phase, sess.Machine.Missing(sess.Facts), sess.recentTurns(m.history))
		sess.append(model.RoleSystem, q.Text, m.now().UTC())
		reply.Question = &q
	}
	return reply
}

// correctionTargets returns the requirements of every phase completed
// before current.
func (m *Manager) correctionTargets(sess *Session, current phase.Phase) []flow.Requirement {
	var reqs []flow.Requirement
	for _, p := range phase.Conversational() {
		if !p.Before(current) {
			break
		}
		reqs = append(reqs, sess.Domain.Registry().Requirements(p)...)
	}
	return reqs
}

// Summary returns the session's progress and phase outputs. Stale
// outputs are regenerated here, the first read after a backward
// correction, and the refreshed versions persisted.
func (m *Manager) Summary(ctx context.Context, id string) (*Summary, error) {
	unlock := m.lock(id)
	defer unlock()

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		SessionID: sess.ID,
		Domain:    sess.Domain.Name,
		Phase:     sess.Machine.Phase(),
		Terminal:  sess.Machine.Terminal(),
		Progress:  sess.Domain.Registry().Progress(sess.Facts),
	}

	refreshed := false
	for _, p := range phase.Conversational() {
		out, ok := sess.Machine.Output(p)
		if !ok {
			summary.Phases = append(summary.Phases, PhaseSummary{Phase: p})
			continue
		}
		if out.Stale {
			out, _ = sess.Machine.Refresh(p, sess.Facts)
			refreshed = true
			event.Publish(m.bus, event.OutputRegenerated{
				SessionID: sess.ID,
				Phase:     p,
				Version:   out.Version,
			})
		}
		summary.Phases = append(summary.Phases, PhaseSummary{Phase: p, Available: true, Output: out})
	}

	if refreshed {
		if err := m.save(ctx, sess); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// MessageLog returns the session's transcript.
func (m *Manager) MessageLog(ctx context.Context, id string) ([]Message, error) {
	unlock := m.lock(id)
	defer unlock()

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Log, nil
}

// Stats counts persisted sessions per current phase.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	ids, err := m.sessions.List(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.KindStoreUnavailable, err, "listing sessions")
	}

	stats := &Stats{Sessions: len(ids), ByPhase: make(map[string]int)}
	for _, id := range ids {
		rec, err := m.sessions.Load(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // evicted between List and Load
			}
			return nil, fault.Wrap(fault.KindStoreUnavailable, err, "loading session %s", id)
		}
		sess, err := unmarshalSession(rec.Payload, rec.Revision, m.catalog)
		if err != nil {
			m.log.Warn("skipping undecodable session", slog.String("session_id", id), slog.String("error", err.Error()))
			continue
		}
		stats.ByPhase[sess.Machine.Phase().String()]++
	}
	return stats, nil
}

func (m *Manager) load(ctx context.Context, id string) (*Session, error) {
	rec, err := m.sessions.Load(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fault.New(fault.KindSessionNotFound, "no session with id %s", id)
		}
		return nil, fault.Wrap(fault.KindStoreUnavailable, err, "loading session %s", id)
	}
	sess, err := unmarshalSession(rec.Payload, rec.Revision, m.catalog)
	if err != nil {
		return nil, fault.Wrap(fault.KindStoreUnavailable, err, "restoring session %s", id)
	}
	return sess, nil
}

func (m *Manager) save(ctx context.Context, sess *Session) error {
	payload, err := sess.marshal()
	if err != nil {
		return fault.Wrap(fault.KindStoreUnavailable, err, "encoding session %s", sess.ID)
	}
	rev, err := m.sessions.Save(ctx, &store.Record{
		ID:       sess.ID,
		Revision: sess.revision,
		Payload:  payload,
	})
	if err != nil {
		return fault.Wrap(fault.KindStoreUnavailable, err, "persisting session %s", sess.ID)
	}
	sess.revision = rev
	return nil
}

// lock acquires the per-session mutex, creating its entry on first use.
// The returned func releases the mutex and drops the entry once no one
// else holds or waits for it.
func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}
