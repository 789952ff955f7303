// Package fact holds the typed facts collected over the course of a
// conversation session. The store is deterministic given write order and
// has no side effects beyond the owning session.
package fact

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/intentlabs/transformd/backend/phase"
)

// Shape declares the expected form of a fact value. Extraction results
// that do not conform to the declared shape of their key are rejected.
type Shape string

const (
	ShapeScalar Shape = "scalar"
	ShapeList   Shape = "list"
	ShapeText   Shape = "text"
)

// Value is a single fact value: a scalar, a list of scalars, or free text.
type Value struct {
	Shape  Shape    `json:"shape"`
	Scalar string   `json:"scalar,omitempty"`
	List   []string `json:"list,omitempty"`
	Text   string   `json:"text,omitempty"`
}

func ScalarValue(s string) Value {
	return Value{Shape: ShapeScalar, Scalar: s}
}

func ListValue(items ...string) Value {
	return Value{Shape: ShapeList, List: items}
}

func TextValue(s string) Value {
	return Value{Shape: ShapeText, Text: s}
}

// Empty reports whether the value carries no information. An empty list
// or blank text does not satisfy a requirement even though the key exists.
func (v Value) Empty() bool {
	switch v.Shape {
	case ShapeScalar:
		return strings.TrimSpace(v.Scalar) == ""
	case ShapeList:
		return len(v.List) == 0
	case ShapeText:
		return strings.TrimSpace(v.Text) == ""
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.Shape {
	case ShapeScalar:
		return v.Scalar
	case ShapeList:
		return strings.Join(v.List, ", ")
	default:
		return v.Text
	}
}

// Any returns the value as a plain Go value for output assembly.
func (v Value) Any() any {
	switch v.Shape {
	case ShapeScalar:
		return v.Scalar
	case ShapeList:
		return append([]string(nil), v.List...)
	default:
		return v.Text
	}
}

// Fact is a single collected piece of information: key, value, how
// confident the extraction was, and the phase during which it was written.
type Fact struct {
	Key        string  `json:"key"`
	Value      Value   `json:"value"`
	Confidence float64 `json:"confidence"`
	// Phase is the phase active at the most recent write.
	Phase phase.Phase `json:"phase"`
	// Phases is every phase that was active when the key was written. A
	// correction during a later phase extends the set; the key never
	// leaves the set of the phase it was first collected in.
	Phases    []phase.Phase `json:"phases"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// InPhase reports whether the key was ever written while p was active.
func (f Fact) InPhase(p phase.Phase) bool {
	for _, q := range f.Phases {
		if q == p {
			return true
		}
	}
	return false
}

// Store is the per-session fact accumulator. It is not safe for
// concurrent use; the session manager serializes access per session.
type Store struct {
	facts map[string]Fact
	order []string // keys in first-write order
}

func NewStore() *Store {
	return &Store{facts: make(map[string]Fact)}
}

// Put inserts or overwrites the fact for key. A write whose confidence is
// strictly lower than the stored confidence for the same key is ignored:
// confidence never goes down. Reports whether the write was applied.
func (s *Store) Put(key string, v Value, confidence float64, p phase.Phase) bool {
	phases := []phase.Phase{p}
	if existing, ok := s.facts[key]; ok {
		if confidence < existing.Confidence {
			return false
		}
		phases = appendPhase(existing.Phases, p)
	} else {
		s.order = append(s.order, key)
	}

	s.facts[key] = Fact{
		Key:        key,
		Value:      v,
		Confidence: confidence,
		Phase:      p,
		Phases:     phases,
		UpdatedAt:  time.Now().UTC(),
	}
	return true
}

func appendPhase(set []phase.Phase, p phase.Phase) []phase.Phase {
	for _, q := range set {
		if q == p {
			return set
		}
	}
	return append(set, p)
}

// Get returns the current fact for key, if any.
func (s *Store) Get(key string) (Fact, bool) {
	f, ok := s.facts[key]
	return f, ok
}

// Has reports whether key has ever been written.
func (s *Store) Has(key string) bool {
	_, ok := s.facts[key]
	return ok
}

// KeysForPhase returns the keys ever written while p was the active
// phase, in first-write order. A later correction does not remove a key
// from the set of the phase that collected it.
func (s *Store) KeysForPhase(p phase.Phase) []string {
	var keys []string
	for _, key := range s.order {
		if s.facts[key].InPhase(p) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Len returns the number of stored facts.
func (s *Store) Len() int {
	return len(s.facts)
}

// Snapshot returns an immutable copy of the store contents, used when
// assembling phase outputs.
func (s *Store) Snapshot() Snapshot {
	facts := make(map[string]Fact, len(s.facts))
	for k, f := range s.facts {
		f.Value.List = append([]string(nil), f.Value.List...)
		f.Phases = append([]phase.Phase(nil), f.Phases...)
		facts[k] = f
	}
	return Snapshot{facts: facts}
}

// Snapshot is a point-in-time, read-only view of a Store.
type Snapshot struct {
	facts map[string]Fact
}

func (s Snapshot) Get(key string) (Fact, bool) {
	f, ok := s.facts[key]
	return f, ok
}

func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.facts))
	for k := range s.facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) MarshalJSON() ([]byte, error) {
	facts := make([]Fact, 0, len(s.order))
	for _, key := range s.order {
		facts = append(facts, s.facts[key])
	}
	return json.Marshal(facts)
}

func (s *Store) UnmarshalJSON(data []byte) error {
	var facts []Fact
	if err := json.Unmarshal(data, &facts); err != nil {
		return err
	}
	s.facts = make(map[string]Fact, len(facts))
	s.order = s.order[:0]
	for _, f := range facts {
		// Records persisted before phase sets were tracked carry only
		// the last-write phase.
		if len(f.Phases) == 0 {
			f.Phases = []phase.Phase{f.Phase}
		}
		s.facts[f.Key] = f
		s.order = append(s.order, f.Key)
	}
	return nil
}
