package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts shapes a bounded retry with exponential backoff.
type RetryOpts struct {
	// MaxAttempts counts the first call; values below 1 mean one call.
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	// Jitter scales each pause by a random factor in [0.5, 1.5).
	Jitter bool
	// Retryable reports whether an error is worth another attempt. nil
	// retries every error.
	Retryable func(error) bool
}

// DefaultRetry is used for sink writes (NATS, Neo4j).
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

// backoff is the pause after the n-th failed attempt.
func (o RetryOpts) backoff(n int) time.Duration {
	d := o.InitialWait
	for i := 1; i < n && (o.MaxWait <= 0 || d < o.MaxWait); i++ {
		d *= 2
	}
	if o.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
	}
	if o.MaxWait > 0 && d > o.MaxWait {
		d = o.MaxWait
	}
	return d
}

// RetryErr calls f until it succeeds, fails with a non-retryable error,
// runs out of attempts or ctx ends. It returns the last error.
func RetryErr(ctx context.Context, opts RetryOpts, f func(context.Context) error) error {
	attempts := max(opts.MaxAttempts, 1)
	for n := 1; ; n++ {
		err := f(ctx)
		if err == nil {
			return nil
		}
		if n >= attempts || (opts.Retryable != nil && !opts.Retryable(err)) {
			return err
		}
		t := time.NewTimer(opts.backoff(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
