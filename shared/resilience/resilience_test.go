package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)

	failure := errors.New("upstream 503")
	for range 2 {
		cb.RecordResult(failure)
	}
	if cb.State() != CircuitClosed {
		t.Fatal("breaker opened before the threshold")
	}
	if !cb.Allow() {
		t.Fatal("closed breaker refused a call")
	}

	cb.RecordResult(failure)
	if cb.State() != CircuitOpen {
		t.Fatal("breaker did not open at the threshold")
	}
	if cb.Allow() {
		t.Fatal("open breaker admitted a call")
	}
}

func TestCircuitBreakerProbesAfterReset(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)
	cb.RecordResult(errors.New("boom"))

	time.Sleep(20 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("breaker refused the probe after the reset timeout")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}

	cb.RecordResult(nil)
	if cb.State() != CircuitClosed {
		t.Fatal("successful probe did not close the breaker")
	}
}

func TestCircuitBreakerSuccessResetsFailureRun(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Second)
	cb.RecordResult(errors.New("boom"))
	cb.RecordResult(nil)
	cb.RecordResult(errors.New("boom"))

	if cb.State() != CircuitClosed {
		t.Fatal("non-consecutive failures opened the breaker")
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := &RetryConfig{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
	}

	first := cfg.Backoff(1)
	if first < 90*time.Millisecond || first > 110*time.Millisecond {
		t.Errorf("attempt 1 delay = %s, want ~100ms", first)
	}

	third := cfg.Backoff(3)
	if third < 360*time.Millisecond || third > 440*time.Millisecond {
		t.Errorf("attempt 3 delay = %s, want ~400ms", third)
	}

	if capped := cfg.Backoff(10); capped != time.Second {
		t.Errorf("attempt 10 delay = %s, want cap", capped)
	}
}
