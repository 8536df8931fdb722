package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync cycle is already running.
	// Refresh and processing cycles are mutually exclusive.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrAuthRequired indicates authentication failed and the single
	// transparent re-authentication attempt did not recover it.
	ErrAuthRequired = errors.New("authentication required")

	// ErrInvalidResponse indicates the server returned a response the
	// client cannot use (permanent, never retried).
	ErrInvalidResponse = errors.New("invalid response")

	// ErrArticleNotFound indicates a requested article resource does not
	// exist on the server (strict fetch mode only).
	ErrArticleNotFound = errors.New("article not found")

	// ErrTimeout indicates a network operation exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrUnreachable indicates the network path to the server is down.
	ErrUnreachable = errors.New("network unreachable")

	// ErrNoContent indicates an article field has no raw text at all, so
	// not even a degraded plain-text representation can be produced.
	ErrNoContent = errors.New("no content available")
)

// ServerError represents a non-2xx response from the news API.
// 5xx statuses are retryable; 403 is permanent.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// Retryable reports whether the status is worth retrying.
func (e *ServerError) Retryable() bool {
	return e.Status >= 500
}

// RateLimitError represents a 429 response with an optional Retry-After.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// DecodeError indicates a response body that failed to decode.
// Permanent: retrying cannot change the payload.
type DecodeError struct {
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response: %s", e.Detail)
}

// IsRetryable reports whether a failed operation may succeed if retried.
// Only transient-network failures qualify: timeouts, unreachable network
// and 5xx server errors. Authentication, decode and not-found errors are
// permanent for the current operation, and rate limiting is handled by
// the client's Retry-After cooldown rather than the backoff wrapper.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnreachable) {
		return true
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Retryable()
	}
	return false
}

// IsNotFound checks if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrArticleNotFound)
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}
