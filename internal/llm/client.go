package llm

import (
	"context"
	"time"

	"github.com/fingraph/fingraph/internal/logging"
)

// Client is the throttled, retried transport used by the extraction
// pipeline. Every call waits on the shared Limiter, then runs with a
// per-call timeout; transient failures are retried per the RetryPolicy.
type Client struct {
	provider Provider
	limiter  *Limiter
	policy   RetryPolicy
	timeout  time.Duration
	log      *logging.Logger
	clock    Clock
}

// DefaultCallTimeout bounds a single backend call.
const DefaultCallTimeout = 30 * time.Second

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithClock injects a clock for deterministic backoff in tests.
func WithClock(clock Clock) ClientOption {
	return func(c *Client) { c.clock = clock }
}

// NewClient wraps a provider with the shared limiter and retry policy.
func NewClient(provider Provider, limiter *Limiter, log *logging.Logger, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		limiter:  limiter,
		policy:   DefaultRetryPolicy(),
		timeout:  DefaultCallTimeout,
		log:      log,
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the underlying backend identifier.
func (c *Client) Name() string {
	return c.provider.Name()
}

// Complete performs one rate-limited, retried completion call. After the
// policy gives up on a transient error the caller receives a
// *RetriesExhaustedError wrapping the last cause; terminal errors propagate
// on first occurrence.
func (c *Client) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	var lastErr error
	attempt := 0
	for {
		attempt++

		text, err := c.attempt(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err

		delay, retry := c.policy.Decide(err, attempt)
		if !retry {
			if Retryable(err) {
				return "", &RetriesExhaustedError{Attempts: attempt, Last: lastErr}
			}
			return "", err
		}

		c.log.Warn("backend call failed, retrying",
			"backend", c.provider.Name(), "attempt", attempt, "delay", delay.String(), "error", err)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-c.clock.After(delay):
		}
	}
}

// attempt runs a single rate-limited call with the per-call timeout. A
// timeout here cancels only this attempt; the document-level context is
// untouched.
func (c *Client) attempt(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.provider.Complete(callCtx, prompt, opts)
}
