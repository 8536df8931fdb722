package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", ErrTimeout, true},
		{"unreachable", ErrUnreachable, true},
		{"wrapped timeout", fmt.Errorf("fetch: %w", ErrTimeout), true},
		{"server 500", &ServerError{Status: 500}, true},
		{"server 503", &ServerError{Status: 503}, true},
		{"server 403", &ServerError{Status: 403}, false},
		{"rate limited", &RateLimitError{RetryAfter: time.Second}, false},
		{"auth required", ErrAuthRequired, false},
		{"invalid response", ErrInvalidResponse, false},
		{"decode", &DecodeError{Detail: "bad json"}, false},
		{"not found", ErrArticleNotFound, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(ErrArticleNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ErrTimeout))
	assert.False(t, IsNotFound(nil))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&RateLimitError{}))
	assert.True(t, IsRateLimited(fmt.Errorf("call: %w", &RateLimitError{RetryAfter: time.Minute})))
	assert.False(t, IsRateLimited(ErrTimeout))
}

func TestRateLimitError_Message(t *testing.T) {
	assert.Equal(t, "rate limited", (&RateLimitError{}).Error())
	assert.Equal(t, "rate limited, retry after 30s", (&RateLimitError{RetryAfter: 30 * time.Second}).Error())
}
