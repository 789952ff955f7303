package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/phase"
	"github.com/intentlabs/transformd/shared/resilience"
)

func fastCore(name string) core {
	options := DefaultProviderOptions(name)
	options.RetryConfig = &resilience.RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          2 * time.Millisecond,
		BackoffMultiplier: 1,
	}
	options.CircuitBreaker = nil
	options.Limiter = nil
	return newCore(name, options)
}

func teamSizeRequest() *ExtractRequest {
	return &ExtractRequest{
		Message: "we are a team of 8",
		Phase:   phase.Discover,
		Targets: []TargetKey{
			{Key: "discover.team_size", Description: "team size", Shape: fact.ShapeScalar},
		},
	}
}

func TestExtractFactsRetriesMalformedOutput(t *testing.T) {
	c := fastCore("fake")

	calls := 0
	resp, err := c.extractFacts(context.Background(), teamSizeRequest(), func(context.Context, string, string) (string, error) {
		calls++
		if calls == 1 {
			return "sure! the team has eight people", nil
		}
		return `{"discover.team_size": {"value": "8", "confidence": 0.9}}`, nil
	})
	if err != nil {
		t.Fatalf("extractFacts: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want the malformed first response retried", calls)
	}

	got := resp.Facts["discover.team_size"]
	if !got.Found || got.Value.Scalar != "8" {
		t.Errorf("fact = %+v", got)
	}
}

func TestExtractFactsExhaustsRetryBudgetOnMalformedOutput(t *testing.T) {
	c := fastCore("fake")

	calls := 0
	_, err := c.extractFacts(context.Background(), teamSizeRequest(), func(context.Context, string, string) (string, error) {
		calls++
		return "still not JSON", nil
	})

	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != ProviderErrorKindMalformedOutput {
		t.Fatalf("err = %v, want malformed_output", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want the full retry budget spent", calls)
	}
}

func TestExtractFactsDoesNotRetryInvalidRequest(t *testing.T) {
	c := fastCore("fake")

	calls := 0
	_, err := c.extractFacts(context.Background(), teamSizeRequest(), func(context.Context, string, string) (string, error) {
		calls++
		return "", NewProviderError("fake", ProviderErrorKindInvalidRequest, errors.New("bad request"))
	})

	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != ProviderErrorKindInvalidRequest {
		t.Fatalf("err = %v, want invalid_request", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, non-retryable errors must not be retried", calls)
	}
}

func TestGenerateQuestionTrimsResponse(t *testing.T) {
	c := fastCore("fake")

	resp, err := c.generateQuestion(context.Background(), &QuestionRequest{
		Target: TargetKey{Key: "discover.team_size", Description: "team size", Shape: fact.ShapeScalar},
		Phase:  phase.Discover,
	}, func(context.Context, string, string) (string, error) {
		return "  How many people are on the team?\n", nil
	})
	if err != nil {
		t.Fatalf("generateQuestion: %v", err)
	}
	if resp.Text != "How many people are on the team?" {
		t.Errorf("text = %q", resp.Text)
	}
}
