package model

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/intentlabs/transformd/shared/resilience"
	"golang.org/x/time/rate"
)

// completeFunc is one raw round trip to a provider: system prompt and
// user prompt in, response text out.
type completeFunc func(ctx context.Context, systemPrompt, prompt string) (string, error)

// core carries the call plumbing every provider shares: rate limiting,
// bounded retries with backoff, circuit breaking and metrics.
type core struct {
	name        string
	model       string
	timeout     time.Duration
	retryConfig *resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
	limiter     *rate.Limiter
	metrics     *providerMetrics
}

func newCore(name string, options *ProviderOptions) core {
	return core{
		name:        name,
		model:       options.Model,
		timeout:     options.Timeout,
		retryConfig: options.RetryConfig,
		breaker:     options.CircuitBreaker,
		limiter:     options.Limiter,
		metrics:     newProviderMetrics(options.Metrics),
	}
}

// invoke runs one collaborator call under the shared resilience policy.
// The returned error is always a *ProviderError.
func (c *core) invoke(ctx context.Context, op string, call func(context.Context) (string, error)) (string, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		err := NewProviderError(c.name, ProviderErrorKindOverloaded, errors.New("circuit open"))
		c.metrics.Observe(c.name, op, 0, err)
		return "", err
	}

	start := time.Now()
	content, err := retry.DoWithData(
		func() (string, error) {
			if c.limiter != nil {
				if waitErr := c.limiter.Wait(ctx); waitErr != nil {
					return "", NewProviderError(c.name, ProviderErrorKindCanceled, waitErr)
				}
			}
			callCtx := ctx
			if c.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}
			return call(callCtx)
		},
		retry.Attempts(c.retryConfig.MaxAttempts),
		retry.DelayType(c.retryDelay),
		retry.MaxDelay(c.retryConfig.MaxDelay),
		retry.RetryIf(c.isRetryable),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)

	if c.breaker != nil {
		c.breaker.RecordResult(err)
	}
	c.metrics.Observe(c.name, op, time.Since(start), err)
	return content, err
}

// extractFacts runs one extraction round. Decoding happens inside the
// retry loop: malformed collaborator output is a retryable failure and
// must consume the bounded retry budget before surfacing.
func (c *core) extractFacts(ctx context.Context, req *ExtractRequest, complete completeFunc) (*ExtractResponse, error) {
	var resp *ExtractResponse
	_, err := c.invoke(ctx, "extract", func(callCtx context.Context) (string, error) {
		content, err := complete(callCtx, extractionSystemPrompt, buildExtractionPrompt(req))
		if err != nil {
			return "", err
		}
		decoded, err := DecodeExtraction(c.name, content, req.Targets)
		if err != nil {
			return "", err
		}
		resp = decoded
		return content, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// generateQuestion runs one phrasing round.
func (c *core) generateQuestion(ctx context.Context, req *QuestionRequest, complete completeFunc) (*QuestionResponse, error) {
	content, err := c.invoke(ctx, "generate_question", func(callCtx context.Context) (string, error) {
		return complete(callCtx, questionSystemPrompt, buildQuestionPrompt(req))
	})
	if err != nil {
		return nil, err
	}
	return &QuestionResponse{Text: strings.TrimSpace(content)}, nil
}

func (c *core) isRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		ok, _ := pe.Retryable()
		return ok
	}
	return true
}

// retryDelay prefers provider-directed timing (Retry-After) when the
// config allows it, otherwise exponential backoff with jitter.
func (c *core) retryDelay(n uint, err error, _ *retry.Config) time.Duration {
	var pe *ProviderError
	if c.retryConfig.UseProviderBackoff && errors.As(err, &pe) {
		if ok, after := pe.Retryable(); ok && after > 0 {
			return after
		}
	}
	return c.retryConfig.Backoff(n + 1)
}

// classifyTransport maps transport-level failures that every SDK can
// produce. Provider-specific status codes are handled by each provider.
func (c *core) classifyTransport(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(c.name, ProviderErrorKindTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(c.name, ProviderErrorKindCanceled, err)
	default:
		return NewProviderError(c.name, ProviderErrorKindUnknown, err)
	}
}

// classifyStatus maps an HTTP status code to an error kind. Shared by
// the providers, which all speak HTTP underneath.
func (c *core) classifyStatus(status int, err error) *ProviderError {
	pe := NewProviderError(c.name, ProviderErrorKindUnknown, err)
	switch {
	case status == 400 || status == 404 || status == 422:
		pe.Kind = ProviderErrorKindInvalidRequest
	case status == 429:
		pe.Kind = ProviderErrorKindRateLimitExceeded
	case status == 503 || status == 529:
		pe.Kind = ProviderErrorKindOverloaded
	case status >= 500:
		pe.Kind = ProviderErrorKindInternal
	case status == 408:
		pe.Kind = ProviderErrorKindTimeout
	}
	return pe
}
