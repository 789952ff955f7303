// Package model is the narrow boundary to the external language-model
// collaborators. The orchestrator only needs two capabilities, fact
// extraction and question phrasing, so alternate providers or
// deterministic test doubles substitute without touching the state
// machine.
package model

import (
	"context"
	"fmt"
	"time"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/phase"
	"github.com/intentlabs/transformd/shared/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Role of a conversation turn handed to the generation collaborator.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Turn is one prior exchange supplied as context for question phrasing.
type Turn struct {
	Role Role
	Text string
}

// TargetKey names a fact key the collaborator should try to fill,
// together with its semantic description and expected value shape.
type TargetKey struct {
	Key         string
	Description string
	Shape       fact.Shape
}

// ExtractRequest asks the text-understanding collaborator to turn one
// free-form user message into structured values for the target keys.
type ExtractRequest struct {
	Message string
	Phase   phase.Phase
	Targets []TargetKey
}

// ExtractedFact is the per-key result: either a value with confidence or
// an explicit not-found.
type ExtractedFact struct {
	Found      bool
	Value      fact.Value
	Confidence float64
}

type ExtractResponse struct {
	Facts map[string]ExtractedFact
}

// QuestionRequest asks the text-generation collaborator to phrase the
// next question for the target key, given recent conversation context.
type QuestionRequest struct {
	Target  TargetKey
	Phase   phase.Phase
	History []Turn
}

type QuestionResponse struct {
	Text string
}

// Provider is implemented by every language-model collaborator.
type Provider interface {
	ExtractFacts(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error)
	GenerateQuestion(ctx context.Context, req *QuestionRequest) (*QuestionResponse, error)
}

// Rate limiter defaults: 50 requests per minute with small bursts.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

type ProviderOptions struct {
	Model          string
	URL            string
	Timeout        time.Duration
	RetryConfig    *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
	Limiter        *rate.Limiter
	Metrics        *prometheus.Registry
}

type ProviderOption func(*ProviderOptions)

func WithModel(model string) ProviderOption {
	return func(o *ProviderOptions) {
		o.Model = model
	}
}

func WithURL(url string) ProviderOption {
	return func(o *ProviderOptions) {
		o.URL = url
	}
}

func WithTimeout(timeout time.Duration) ProviderOption {
	return func(o *ProviderOptions) {
		o.Timeout = timeout
	}
}

func WithRetryConfig(retryConfig *resilience.RetryConfig) ProviderOption {
	return func(o *ProviderOptions) {
		o.RetryConfig = retryConfig
	}
}

func WithCircuitBreaker(circuitBreaker *resilience.CircuitBreaker) ProviderOption {
	return func(o *ProviderOptions) {
		o.CircuitBreaker = circuitBreaker
	}
}

func WithMetrics(registry *prometheus.Registry) ProviderOption {
	return func(o *ProviderOptions) {
		o.Metrics = registry
	}
}

func DefaultProviderOptions(name string) *ProviderOptions {
	return &ProviderOptions{
		Timeout:        30 * time.Second,
		RetryConfig:    resilience.DefaultRetryConfig(),
		CircuitBreaker: resilience.NewCircuitBreaker(name, 5, 10*time.Second),
		Limiter:        rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
}

// New builds a provider of the given kind ("anthropic", "openai",
// "deepseek").
func New(kind, apiKey string, opts ...ProviderOption) (Provider, error) {
	switch kind {
	case "anthropic":
		return NewAnthropicProvider(apiKey, opts...)
	case "openai":
		return NewOpenAIProvider(apiKey, opts...)
	case "deepseek":
		return NewDeepSeekProvider(apiKey, opts...)
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", kind)
	}
}
