package flow

import (
	"strings"
	"time"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/phase"
)

// Output is the structured artifact produced when a phase completes. A
// later correction to one of the phase's facts marks the output stale;
// it is regenerated with an incremented version the next time it is read.
type Output struct {
	Phase       phase.Phase    `json:"phase"`
	Version     int            `json:"version"`
	Fields      map[string]any `json:"fields"`
	Stale       bool           `json:"stale"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Machine drives phase transitions for one session. State only moves
// forward: Discover, Assess, Justify, Plan, then the terminal Complete.
// It is not safe for concurrent use; the session manager serializes
// access per session.
type Machine struct {
	registry *Registry
	current  phase.Phase
	outputs  map[phase.Phase]*Output
}

func NewMachine(registry *Registry) *Machine {
	return &Machine{
		registry: registry,
		current:  phase.Discover,
		outputs:  make(map[phase.Phase]*Output),
	}
}

// Phase returns the session's current phase.
func (m *Machine) Phase() phase.Phase {
	return m.current
}

// Terminal reports whether the machine has reached Complete.
func (m *Machine) Terminal() bool {
	return m.current.Terminal()
}

// Missing returns the unmet requirements for the current phase.
func (m *Machine) Missing(store *fact.Store) []Requirement {
	if m.Terminal() {
		return nil
	}
	return m.registry.Missing(m.current, store)
}

// Observe recomputes completion after fact updates and advances through
// every phase whose requirements are now met, assembling one output per
// completed phase. Recomputing with no new facts produces no transition,
// so the call is idempotent.
func (m *Machine) Observe(store *fact.Store) []*Output {
	var produced []*Output
	for !m.Terminal() && len(m.registry.Missing(m.current, store)) == 0 {
		out := m.assemble(m.current, store.Snapshot(), 1)
		m.outputs[m.current] = out
		produced = append(produced, out)
		m.current = m.current.Next()
	}
	return produced
}

// RecordWrite notes that key was just written. When the key belongs to a
// phase that has already completed, that phase's output is marked stale
// so it is regenerated before being surfaced again. The current phase
// never reverts.
func (m *Machine) RecordWrite(key string) {
	owner, ok := m.registry.Owner(key)
	if !ok || !owner.Before(m.current) {
		return
	}
	if out, ok := m.outputs[owner]; ok {
		out.Stale = true
	}
}

// Output returns the most recently assembled output for p, which may be
// stale. Callers surface outputs through Refresh.
func (m *Machine) Output(p phase.Phase) (*Output, bool) {
	out, ok := m.outputs[p]
	return out, ok
}

// Refresh regenerates p's output from the current facts if it is stale,
// incrementing its version. Fresh outputs are returned unchanged.
func (m *Machine) Refresh(p phase.Phase, store *fact.Store) (*Output, bool) {
	out, ok := m.outputs[p]
	if !ok {
		return nil, false
	}
	if out.Stale {
		out = m.assemble(p, store.Snapshot(), out.Version+1)
		m.outputs[p] = out
	}
	return out, true
}

// assemble is a pure function of the snapshot restricted to the phase's
// declared keys. Field names are the key's local part ("pain_points" for
// "discover.pain_points").
func (m *Machine) assemble(p phase.Phase, snap fact.Snapshot, version int) *Output {
	fields := make(map[string]any)
	for _, req := range m.registry.Requirements(p) {
		f, ok := snap.Get(req.Key)
		if !ok {
			continue
		}
		fields[fieldName(req.Key)] = f.Value.Any()
	}
	return &Output{
		Phase:       p,
		Version:     version,
		Fields:      fields,
		GeneratedAt: time.Now().UTC(),
	}
}

func fieldName(key string) string {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// State is the serializable form of a Machine, stored with the session.
type State struct {
	Phase   phase.Phase `json:"phase"`
	Outputs []*Output   `json:"outputs,omitempty"`
}

func (m *Machine) State() State {
	st := State{Phase: m.current}
	for _, p := range phase.Conversational() {
		if out, ok := m.outputs[p]; ok {
			st.Outputs = append(st.Outputs, out)
		}
	}
	return st
}

// Restore rebuilds a machine from persisted state.
func Restore(registry *Registry, st State) *Machine {
	m := NewMachine(registry)
	m.current = st.Phase
	for _, out := range st.Outputs {
		m.outputs[out.Phase] = out
	}
	return m
}
