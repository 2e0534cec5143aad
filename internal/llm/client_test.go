package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fingraph/fingraph/internal/logging"
)

// fakeClock advances instantly on After, so backoff and limiter waits are
// deterministic and take no wall time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	fired := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- fired
	return ch
}

// scriptedProvider returns canned errors in order, then succeeds.
type scriptedProvider struct {
	mu       sync.Mutex
	errs     []error
	attempts int
	response string
}

func (p *scriptedProvider) Name() string { return "test/scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return p.response, nil
}

func newTestClient(p Provider, clock Clock) *Client {
	limiter := NewLimiterWithClock(1000, clock)
	return NewClient(p, limiter, logging.Nop(), WithClock(clock))
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	clock := newFakeClock()
	provider := &scriptedProvider{
		errs:     []error{fmt.Errorf("%w: dial tcp", ErrTimeout), fmt.Errorf("%w: dial tcp", ErrTimeout)},
		response: `[]`,
	}
	client := newTestClient(provider, clock)

	got, err := client.Complete(context.Background(), "extract", CompletionOpts{})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got != `[]` {
		t.Errorf("unexpected response: %q", got)
	}
	if provider.attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", provider.attempts)
	}
}

func TestClient_RetriesExhausted(t *testing.T) {
	clock := newFakeClock()
	provider := &scriptedProvider{
		errs: []error{
			fmt.Errorf("%w: dial tcp", ErrConnection),
			fmt.Errorf("%w: dial tcp", ErrConnection),
			fmt.Errorf("%w: dial tcp", ErrConnection),
			fmt.Errorf("%w: dial tcp", ErrConnection),
		},
	}
	client := newTestClient(provider, clock)

	_, err := client.Complete(context.Background(), "extract", CompletionOpts{})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetriesExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, ErrConnection) {
		t.Errorf("exhaustion error should wrap the last cause, got %v", err)
	}
	if provider.attempts != 3 {
		t.Errorf("expected exactly 3 underlying attempts, got %d", provider.attempts)
	}
}

func TestClient_TerminalErrorsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"http 500", &BackendError{StatusCode: 500, Body: "internal"}},
		{"http 429", &BackendError{StatusCode: 429, Body: "rate limited upstream"}},
		{"bad request", fmt.Errorf("%w: empty prompt", ErrBadRequest)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			provider := &scriptedProvider{errs: []error{tt.err}}
			client := newTestClient(provider, clock)

			_, err := client.Complete(context.Background(), "extract", CompletionOpts{})
			if err == nil {
				t.Fatal("expected error")
			}
			if provider.attempts != 1 {
				t.Errorf("terminal error should fail on first attempt, got %d attempts", provider.attempts)
			}
			var exhausted *RetriesExhaustedError
			if errors.As(err, &exhausted) {
				t.Errorf("terminal error must not be wrapped as retries-exhausted: %v", err)
			}
		})
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := DefaultRetryPolicy()
	transient := fmt.Errorf("%w: reset", ErrConnection)

	delay, retry := policy.Decide(transient, 1)
	if !retry || delay != time.Second {
		t.Errorf("attempt 1: got (%v, %v), want (1s, true)", delay, retry)
	}
	delay, retry = policy.Decide(transient, 2)
	if !retry || delay != 2*time.Second {
		t.Errorf("attempt 2: got (%v, %v), want (2s, true)", delay, retry)
	}
	if _, retry = policy.Decide(transient, 3); retry {
		t.Error("attempt 3 should give up (3 total attempts)")
	}
	if _, retry = policy.Decide(&BackendError{StatusCode: 404}, 1); retry {
		t.Error("HTTP errors must never be retried")
	}
}

func TestRetryPolicy_BackoffCap(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 4 * time.Second}
	transient := fmt.Errorf("%w: timeout", ErrTimeout)

	delay, retry := policy.Decide(transient, 5)
	if !retry {
		t.Fatal("expected retry")
	}
	if delay != 4*time.Second {
		t.Errorf("backoff should cap at 4s, got %v", delay)
	}
}

func TestLimiter_BlocksUntilCapacity(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiterWithClock(2, clock)
	ctx := context.Background()

	start := clock.Now()
	for i := 0; i < 2; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if clock.Now() != start {
		t.Error("first two waits should not block at 2/s")
	}

	// Bucket is empty; the third wait must block until a token accrues.
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("third wait: %v", err)
	}
	if elapsed := clock.Now().Sub(start); elapsed < 400*time.Millisecond {
		t.Errorf("third wait should block roughly half a second at 2/s, advanced only %v", elapsed)
	}
}

func TestLimiter_WaitHonorsCancellation(t *testing.T) {
	limiter := NewLimiter(1)
	ctx := context.Background()

	// Drain the one available token.
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("draining wait: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := limiter.Wait(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLimiter_ConcurrentCallers(t *testing.T) {
	clock := newFakeClock()
	limiter := NewLimiterWithClock(50, clock)

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- limiter.Wait(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent wait failed: %v", err)
		}
	}
}

func TestClassifyTransportError(t *testing.T) {
	if got := classifyTransportError(context.DeadlineExceeded); !errors.Is(got, ErrTimeout) {
		t.Errorf("deadline exceeded should classify as timeout, got %v", got)
	}
	if got := classifyTransportError(nil); got != nil {
		t.Errorf("nil should stay nil, got %v", got)
	}
}
