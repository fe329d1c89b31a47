package fn

import (
	"context"
	"errors"
	"time"
)

// ErrDeadline is returned by WithDeadline when the timer wins the race.
var ErrDeadline = errors.New("hard deadline exceeded")

// WithDeadline runs f on its own goroutine and races it against a timer of
// length d. When the timer fires first the call is abandoned: its result is
// dropped into a buffered channel nobody reads and ErrDeadline is returned.
// f receives ctx unchanged, so the abandoned call is bounded only by its own
// (soft) timeout. A non-positive d disables the race.
func WithDeadline[T any](ctx context.Context, d time.Duration, f func(context.Context) Result[T]) Result[T] {
	if d <= 0 {
		return f(ctx)
	}

	done := make(chan Result[T], 1)
	go func() {
		done <- f(ctx)
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-done:
		return r
	case <-timer.C:
		return Err[T](ErrDeadline)
	case <-ctx.Done():
		return Err[T](ctx.Err())
	}
}
