package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Sentinel error kinds for backend calls. The retry policy keys off these:
// timeouts and connection failures are transient, everything else is
// terminal on first occurrence.
var (
	// ErrTimeout marks a backend call that exceeded its deadline.
	ErrTimeout = errors.New("backend call timed out")

	// ErrConnection marks a transient network failure (refused, reset, DNS).
	ErrConnection = errors.New("backend connection failed")

	// ErrBadRequest marks a malformed request-level problem. Never retried.
	ErrBadRequest = errors.New("malformed backend request")
)

// BackendError is an HTTP-level application error from the backend (4xx/5xx).
// Never retried.
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, body)
}

// RetriesExhaustedError wraps the last underlying error after all retry
// attempts failed.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}

// Retryable reports whether err is a transient failure worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection)
}

// classifyTransportError maps raw net/http transport errors onto the
// sentinel kinds. HTTP status errors are handled separately by the
// providers; this only sees errors from the round trip itself.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return err
}
