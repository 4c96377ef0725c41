package aiclient

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceUnavailableError is returned when the circuit breaker is open.
// No attempt is made against the backend and no failure is recorded.
type ServiceUnavailableError struct {
	RetryAfter time.Duration
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("ai service temporarily unavailable, retry in %.1f minutes", e.RetryAfter.Minutes())
}

// RateLimitedError is returned once all retries against a rate-limited
// backend are exhausted. It carries the last underlying error.
type RateLimitedError struct {
	Err error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("ai service rate limited after retries: %v", e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// rateLimitMarkers classify an error as rate limiting by message content.
var rateLimitMarkers = []string{"429", "rate limit", "quota", "too many requests"}

// isRateLimitError reports whether err should be retried as a rate limit.
// Anything else is non-retryable and propagates immediately.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() == 429 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
