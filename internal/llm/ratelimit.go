package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clock abstracts time for the rate limiter so tests can drive it
// deterministically.
type Clock interface {
	Now() time.Time
	// After returns a channel that fires after d, like time.After.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Limiter is a token-bucket gate shared by all backend callers in the
// process. Wait blocks until a token is available; it never drops a caller.
// One instance is constructed at startup and passed to the Client — there is
// no hidden global.
type Limiter struct {
	mu     sync.Mutex
	rate   float64 // tokens added per second
	burst  float64 // bucket capacity
	tokens float64
	last   time.Time
	clock  Clock
}

// DefaultRatePerSecond is the global backend call ceiling.
const DefaultRatePerSecond = 45

// NewLimiter creates a token-bucket limiter allowing perSecond calls per
// second. perSecond <= 0 falls back to DefaultRatePerSecond.
func NewLimiter(perSecond int) *Limiter {
	return NewLimiterWithClock(perSecond, realClock{})
}

// NewLimiterWithClock creates a limiter with an injected clock.
func NewLimiterWithClock(perSecond int, clock Clock) *Limiter {
	if perSecond <= 0 {
		perSecond = DefaultRatePerSecond
	}
	return &Limiter{
		rate:   float64(perSecond),
		burst:  float64(perSecond),
		tokens: float64(perSecond),
		last:   clock.Now(),
		clock:  clock,
	}
}

// Wait blocks until a token is available or ctx is done. Returns ctx.Err()
// on cancellation, wrapped as ErrTimeout when the deadline expired.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clock.Now()
		l.refill(now)
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		// Time until one full token accrues.
		need := (1 - l.tokens) / l.rate
		wait := time.Duration(need * float64(time.Second))
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: waiting for rate limiter", ErrTimeout)
			}
			return ctx.Err()
		case <-l.clock.After(wait):
			// Re-check under the lock; another caller may have taken it.
		}
	}
}

// refill adds tokens for elapsed time. Caller holds the lock.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now
}
