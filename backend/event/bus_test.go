package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/intentlabs/transformd/backend/phase"
	"github.com/prometheus/client_golang/prometheus"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPublishReachesSubscriber(t *testing.T) {
	bus := NewBus(prometheus.NewRegistry())
	defer bus.Close()

	var mu sync.Mutex
	var got []FactRecorded
	sub := Subscribe(bus, func(_ context.Context, e FactRecorded) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	Publish(bus, FactRecorded{SessionID: "s1", Key: "discover.team_size", Phase: phase.Discover, Confidence: 0.9})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0].Key != "discover.team_size" {
		t.Errorf("key = %s", got[0].Key)
	}
}

func TestPublishOnlyMatchingType(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	var created, advanced int
	var mu sync.Mutex
	Subscribe(bus, func(_ context.Context, e SessionCreated) {
		mu.Lock()
		created++
		mu.Unlock()
	})
	Subscribe(bus, func(_ context.Context, e PhaseAdvanced) {
		mu.Lock()
		advanced++
		mu.Unlock()
	})

	Publish(bus, SessionCreated{SessionID: "s1", Domain: "framework_migration"})
	Publish(bus, SessionCreated{SessionID: "s2", Domain: "language_conversion"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return created == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if advanced != 0 {
		t.Errorf("PhaseAdvanced handler fired %d times for SessionCreated events", advanced)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	sub := Subscribe(bus, func(_ context.Context, e SessionEvicted) {})

	if n := SubscriberCount[SessionEvicted](bus); n != 1 {
		t.Fatalf("subscriber count = %d, want 1", n)
	}
	sub.Unsubscribe()
	sub.Unsubscribe() // repeat must be harmless
	if n := SubscriberCount[SessionEvicted](bus); n != 0 {
		t.Errorf("subscriber count after unsubscribe = %d, want 0", n)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	var mu sync.Mutex
	var delivered int
	Subscribe(bus, func(_ context.Context, e ExtractionFailed) {
		panic("observer bug")
	})
	Subscribe(bus, func(_ context.Context, e ExtractionFailed) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	Publish(bus, ExtractionFailed{SessionID: "s1", Phase: phase.Assess, Reason: "upstream 503"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 1
	})
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus(nil)
	bus.Close()
	bus.Close() // idempotent

	Publish(bus, SessionCreated{SessionID: "s1"}) // must not panic
}
