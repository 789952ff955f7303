package flow

import (
	"encoding/json"
	"testing"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/phase"
)

func fillPhase(store *fact.Store, p phase.Phase) {
	switch p {
	case phase.Discover:
		store.Put("discover.goal", fact.TextValue("replatform"), 0.8, p)
		store.Put("discover.team_size", fact.ScalarValue("8"), 0.8, p)
		store.Put("discover.pain_points", fact.ListValue("slow builds"), 0.8, p)
	case phase.Assess:
		store.Put("assess.complexity", fact.ScalarValue("7"), 0.8, p)
	case phase.Justify:
		store.Put("justify.budget", fact.ScalarValue("500k"), 0.8, p)
	case phase.Plan:
		store.Put("plan.approach", fact.ScalarValue("phased"), 0.8, p)
	}
}

func TestObserveAdvancesWhenSatisfied(t *testing.T) {
	m := NewMachine(mustRegistry(t))
	store := fact.NewStore()

	if outs := m.Observe(store); len(outs) != 0 {
		t.Fatalf("empty store produced %d outputs", len(outs))
	}
	if m.Phase() != phase.Discover {
		t.Fatalf("phase = %s", m.Phase())
	}

	fillPhase(store, phase.Discover)
	outs := m.Observe(store)
	if len(outs) != 1 || outs[0].Phase != phase.Discover || outs[0].Version != 1 {
		t.Fatalf("outputs = %+v", outs)
	}
	if m.Phase() != phase.Assess {
		t.Errorf("phase = %s, want assess", m.Phase())
	}
	if got := outs[0].Fields["goal"]; got != "replatform" {
		t.Errorf("goal field = %v", got)
	}

	// Idempotent: nothing new, no transition.
	if outs := m.Observe(store); len(outs) != 0 {
		t.Errorf("re-observe produced %d outputs", len(outs))
	}
}

func TestObserveRunsThroughToComplete(t *testing.T) {
	m := NewMachine(mustRegistry(t))
	store := fact.NewStore()
	for _, p := range phase.Conversational() {
		fillPhase(store, p)
	}

	outs := m.Observe(store)
	if len(outs) != 4 {
		t.Fatalf("outputs = %d, want 4", len(outs))
	}
	if !m.Terminal() {
		t.Errorf("phase = %s, want complete", m.Phase())
	}
	// No phase skipped, fixed order.
	for i, p := range phase.Conversational() {
		if outs[i].Phase != p {
			t.Errorf("outputs[%d].Phase = %s, want %s", i, outs[i].Phase, p)
		}
	}
}

func TestRecordWriteMarksEarlierOutputStale(t *testing.T) {
	m := NewMachine(mustRegistry(t))
	store := fact.NewStore()
	fillPhase(store, phase.Discover)
	m.Observe(store)

	// A write to the now-current phase must not mark anything.
	m.RecordWrite("assess.complexity")
	out, _ := m.Output(phase.Discover)
	if out.Stale {
		t.Fatal("current-phase write staled the discover output")
	}

	// A correction to the completed phase does.
	store.Put("discover.team_size", fact.ScalarValue("12"), 0.9, phase.Assess)
	m.RecordWrite("discover.team_size")
	out, _ = m.Output(phase.Discover)
	if !out.Stale {
		t.Fatal("correction did not mark the discover output stale")
	}
	if m.Phase() != phase.Assess {
		t.Error("correction reverted the current phase")
	}

	// Refresh regenerates with the corrected fact and bumps the version.
	refreshed, ok := m.Refresh(phase.Discover, store)
	if !ok || refreshed.Version != 2 || refreshed.Stale {
		t.Fatalf("refreshed = %+v", refreshed)
	}
	if got := refreshed.Fields["team_size"]; got != "12" {
		t.Errorf("team_size = %v", got)
	}

	// Refreshing a fresh output is a no-op.
	again, _ := m.Refresh(phase.Discover, store)
	if again.Version != 2 {
		t.Errorf("version = %d after refreshing a fresh output", again.Version)
	}
}

func TestRefreshUnknownOutput(t *testing.T) {
	m := NewMachine(mustRegistry(t))
	if _, ok := m.Refresh(phase.Plan, fact.NewStore()); ok {
		t.Error("Refresh reported an output that was never assembled")
	}
}

func TestStateRoundTrip(t *testing.T) {
	registry := mustRegistry(t)
	m := NewMachine(registry)
	store := fact.NewStore()
	fillPhase(store, phase.Discover)
	fillPhase(store, phase.Assess)
	m.Observe(store)
	m.RecordWrite("discover.goal")

	data, err := json.Marshal(m.State())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored := Restore(registry, st)
	if restored.Phase() != phase.Justify {
		t.Errorf("phase = %s, want justify", restored.Phase())
	}
	out, ok := restored.Output(phase.Discover)
	if !ok || !out.Stale {
		t.Errorf("discover output = %+v, stale flag lost", out)
	}
	if out, _ := restored.Output(phase.Assess); out.Version != 1 {
		t.Errorf("assess version = %d", out.Version)
	}
}
