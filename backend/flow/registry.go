// Package flow drives a session through the fixed phase progression: it
// declares what each phase needs, detects when a phase is sufficiently
// informed, and assembles the phase's output artifact when it completes.
package flow

import (
	"fmt"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/phase"
)

// Requirement declares one mandatory fact key for a phase, together with
// the material the question selector and extraction adapter need to
// elicit and validate it.
type Requirement struct {
	// Key is the phase-scoped fact key, e.g. "discover.pain_points".
	Key string
	// Description is the semantic description handed to the generation
	// collaborator when phrasing a question for this key.
	Description string
	// Shape is the value shape extraction results must conform to.
	Shape fact.Shape
	// Template is the static, pre-authored question used when question
	// phrasing fails. Every requirement must carry one.
	Template string
	// Predicate optionally tightens "satisfied" beyond presence. When nil
	// a non-empty value of the declared shape satisfies the requirement.
	Predicate func(fact.Fact) bool
}

// Satisfied reports whether f meets this requirement.
func (r Requirement) Satisfied(f fact.Fact) bool {
	if f.Value.Empty() {
		return false
	}
	if r.Predicate != nil {
		return r.Predicate(f)
	}
	return true
}

// Registry is the static declaration of what each conversational phase
// needs before it can complete. It is pure data: no state, no failure
// modes beyond being asked about a phase it does not know.
type Registry struct {
	requirements map[phase.Phase][]Requirement
	owners       map[string]phase.Phase
}

// NewRegistry builds a registry from per-phase requirement declarations.
// Every conversational phase must declare at least one requirement.
func NewRegistry(reqs map[phase.Phase][]Requirement) (*Registry, error) {
	owners := make(map[string]phase.Phase)
	for _, p := range phase.Conversational() {
		if len(reqs[p]) == 0 {
			return nil, fmt.Errorf("phase %s declares no requirements", p)
		}
		for _, r := range reqs[p] {
			if r.Key == "" || r.Template == "" {
				return nil, fmt.Errorf("phase %s has a requirement without key or fallback template", p)
			}
			if _, dup := owners[r.Key]; dup {
				return nil, fmt.Errorf("fact key %s declared by more than one phase", r.Key)
			}
			owners[r.Key] = p
		}
	}
	return &Registry{requirements: reqs, owners: owners}, nil
}

// Requirements returns the declared requirements for p in declaration
// order. Asking about an unknown phase is a programming error.
func (r *Registry) Requirements(p phase.Phase) []Requirement {
	reqs, ok := r.requirements[p]
	if !ok {
		panic(fmt.Sprintf("flow: no requirements declared for phase %s", p))
	}
	return reqs
}

// Owner returns the phase that declared key, if any.
func (r *Registry) Owner(key string) (phase.Phase, bool) {
	p, ok := r.owners[key]
	return p, ok
}

// Missing returns the unmet requirements for p against the store:
// mandatory keys absent from the store first, in declaration order,
// followed by keys that are present but fail their predicate.
func (r *Registry) Missing(p phase.Phase, store *fact.Store) []Requirement {
	var absent, failing []Requirement
	for _, req := range r.Requirements(p) {
		f, ok := store.Get(req.Key)
		switch {
		case !ok:
			absent = append(absent, req)
		case !req.Satisfied(f):
			failing = append(failing, req)
		}
	}
	return append(absent, failing...)
}

// Progress reports the fraction of all mandatory requirements, across
// every conversational phase, currently satisfied by the store.
func (r *Registry) Progress(store *fact.Store) float64 {
	var total, met int
	for _, p := range phase.Conversational() {
		for _, req := range r.Requirements(p) {
			total++
			if f, ok := store.Get(req.Key); ok && req.Satisfied(f) {
				met++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(met) / float64(total)
}
