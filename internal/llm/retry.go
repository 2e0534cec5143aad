package llm

import (
	"time"
)

// RetryPolicy decides, purely from the error kind and the attempt number,
// whether a failed call should be retried and after what delay. It holds no
// state and performs no I/O, so it is unit-testable without a backend.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; it doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the pipeline contract: 3 total attempts,
// 1s base delay doubling, capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
	}
}

// Decide returns whether to retry after the given failed attempt (1-based)
// and the delay to wait first. Only transient errors (timeouts, connection
// failures) are retryable; HTTP and request-level errors give up
// immediately.
func (p RetryPolicy) Decide(err error, attempt int) (time.Duration, bool) {
	if !Retryable(err) {
		return 0, false
	}
	if attempt >= p.MaxAttempts {
		return 0, false
	}
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay, true
}
