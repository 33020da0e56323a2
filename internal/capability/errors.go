package capability

import (
	"context"
	"errors"
	"strings"
)

var retryableMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"502",
	"503",
	"bad gateway",
	"service unavailable",
	"rate limit",
	"too many requests",
	"temporarily",
}

// IsRetryable reports whether an error from a remote agent call is worth
// retrying. Remote failures only carry message text, so classification is by
// pattern: transient transport and throttling failures qualify, validation
// rejections do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
