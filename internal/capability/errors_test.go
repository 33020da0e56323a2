package capability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		errors.New("request timeout"),
		errors.New("call timed out after 10s"),
		errors.New("context deadline exceeded"),
		errors.New("dial tcp: connection refused"),
		errors.New("read: connection reset by peer"),
		errors.New("upstream returned 502"),
		errors.New("503 service unavailable"),
		errors.New("bad gateway"),
		errors.New("rate limit exceeded"),
		errors.New("429 Too Many Requests"),
		errors.New("node temporarily offline"),
		fmt.Errorf("invoke primary: %w", context.DeadlineExceeded),
	}
	for _, err := range retryable {
		assert.True(t, IsRetryable(err), "expected retryable: %v", err)
	}

	permanent := []error{
		errors.New("invalid instrument pair"),
		errors.New("insufficient balance"),
		errors.New("unauthorized"),
		errors.New("capability not found"),
		context.Canceled,
	}
	for _, err := range permanent {
		assert.False(t, IsRetryable(err), "expected permanent: %v", err)
	}

	assert.False(t, IsRetryable(nil))
}
