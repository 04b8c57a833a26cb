package transport

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryPolicy bounds the transport's automatic retries. Attempt n (1-based)
// waits BaseDelay * 2^(n-1) before retrying.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy retries up to three times with 1s, 2s and 4s delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
}

// Delay returns the wait before the retry following the given failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(1<<(attempt-1))
}

// Retryable reports whether a failed attempt may be retried: no response at
// all, or a 5xx. Client errors are never retried.
func Retryable(status int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return status >= http.StatusInternalServerError
}

// RetryState tracks one logical request across its attempts.
type RetryState struct {
	Attempt   int
	NextDelay time.Duration
}

type retryStateKey struct{}

func withRetryState(ctx context.Context, st *RetryState) context.Context {
	return context.WithValue(ctx, retryStateKey{}, st)
}

// AttemptFromContext returns the 1-based attempt number of the request whose
// context is ctx, or 0 outside a transport call.
func AttemptFromContext(ctx context.Context) int {
	if st, ok := ctx.Value(retryStateKey{}).(*RetryState); ok && st != nil {
		return st.Attempt
	}
	return 0
}

// Sleeper waits between attempts. Tests swap it to avoid real delays.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
