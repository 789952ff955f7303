package model

import (
	"fmt"
	"time"
)

type ProviderErrorKind string

const (
	ProviderErrorKindInvalidRequest    ProviderErrorKind = "invalid_request"
	ProviderErrorKindRateLimitExceeded ProviderErrorKind = "rate_limit_exceeded"
	ProviderErrorKindOverloaded        ProviderErrorKind = "overloaded"
	ProviderErrorKindInternal          ProviderErrorKind = "internal"
	ProviderErrorKindTimeout           ProviderErrorKind = "timeout"
	ProviderErrorKindCanceled          ProviderErrorKind = "canceled"
	ProviderErrorKindMalformedOutput   ProviderErrorKind = "malformed_output"
	ProviderErrorKindUnknown           ProviderErrorKind = "unknown"
)

// ProviderError classifies a collaborator failure so callers can decide
// between retry and fallback. Kinds must stay distinguishable: timeouts,
// malformed output and rate limits are handled differently upstream.
type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	RetryAfter time.Duration
	Err        error
}

func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Err:      err,
	}
}

func (pe *ProviderError) Message() string {
	switch pe.Kind {
	case ProviderErrorKindInvalidRequest:
		return "invalid request format or content"
	case ProviderErrorKindRateLimitExceeded:
		if pe.RetryAfter > 0 {
			return fmt.Sprintf("rate limit exceeded, retry after %s", pe.RetryAfter)
		}
		return "rate limit exceeded"
	case ProviderErrorKindOverloaded:
		return "API temporarily overloaded"
	case ProviderErrorKindInternal:
		return "internal server error"
	case ProviderErrorKindTimeout:
		return "request timeout"
	case ProviderErrorKindCanceled:
		return "request canceled"
	case ProviderErrorKindMalformedOutput:
		return "response did not match the requested schema"
	default:
		return "unknown error"
	}
}

// Retryable reports whether another attempt could succeed, and a
// provider-directed delay when one was given.
func (pe *ProviderError) Retryable() (bool, time.Duration) {
	switch pe.Kind {
	case ProviderErrorKindRateLimitExceeded:
		return true, pe.RetryAfter
	case ProviderErrorKindOverloaded:
		return true, 10 * time.Second
	case ProviderErrorKindInternal, ProviderErrorKindTimeout, ProviderErrorKindMalformedOutput:
		return true, 0
	default:
		return false, 0
	}
}

func (pe *ProviderError) Error() string {
	if pe.Err != nil {
		return fmt.Sprintf("%s: %s: %s", pe.Provider, pe.Message(), pe.Err.Error())
	}
	return fmt.Sprintf("%s: %s", pe.Provider, pe.Message())
}

func (pe *ProviderError) Unwrap() error {
	return pe.Err
}
