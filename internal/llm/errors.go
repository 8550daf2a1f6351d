package llm

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured   = errors.New("llm: api key not configured")
	ErrModelNotAllowed = errors.New("llm: model not allowed")
	ErrEmptyPrompt     = errors.New("llm: empty prompt")
	ErrPromptTooLong   = errors.New("llm: prompt too long (max 50000 chars)")
)

// RateLimitError is returned when the provider throttles or is unavailable.
type RateLimitError struct {
	StatusCode int
	Body       string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("llm: rate limited (status %d)", e.StatusCode)
}

// ProviderError covers every other non-success outcome from the provider.
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("llm: provider status %d: %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("llm: provider request failed: %v", e.Err)
	default:
		return fmt.Sprintf("llm: provider status %d: %s", e.StatusCode, e.Body)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TimeoutError is returned when the request deadline passes before a reply.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("llm: request timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
