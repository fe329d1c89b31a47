package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestResultOkErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unexpected unwrap: %d %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("Err should not be ok")
	}
	if _, err := e.Unwrap(); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestWithDeadlineReturnsFastResult(t *testing.T) {
	r := WithDeadline(context.Background(), time.Second, func(context.Context) Result[string] {
		return Ok("fast")
	})
	v, err := r.Unwrap()
	if err != nil || v != "fast" {
		t.Fatalf("expected fast, got %q %v", v, err)
	}
}

func TestWithDeadlineAbandonsSlowCall(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	r := WithDeadline(context.Background(), 20*time.Millisecond, func(context.Context) Result[string] {
		<-release
		return Ok("late")
	})
	if !errors.Is(r.err, ErrDeadline) {
		t.Fatalf("expected ErrDeadline, got %v", r.err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("deadline race waited for the slow call")
	}
}

func TestWithDeadlineDisabled(t *testing.T) {
	r := WithDeadline(context.Background(), 0, func(context.Context) Result[int] {
		time.Sleep(5 * time.Millisecond)
		return Ok(1)
	})
	if !r.IsOk() {
		t.Fatal("zero deadline should run inline")
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	err := RetryErr(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls.Load() != 3 {
		t.Fatalf("expected success on 3rd call, calls=%d err=%v", calls.Load(), err)
	}
}

func TestRetryGivesUp(t *testing.T) {
	var calls int
	err := RetryErr(context.Background(), RetryOpts{MaxAttempts: 2}, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil || calls != 2 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}

	calls = 0
	RetryErr(context.Background(), RetryOpts{}, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if calls != 1 {
		t.Fatalf("zero opts made %d calls", calls)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	o := RetryOpts{InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond}
	if got := o.backoff(1); got != 100*time.Millisecond {
		t.Fatalf("backoff(1) = %s", got)
	}
	if got := o.backoff(2); got != 200*time.Millisecond {
		t.Fatalf("backoff(2) = %s", got)
	}
	if got := o.backoff(10); got != 300*time.Millisecond {
		t.Fatalf("backoff(10) = %s", got)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	var calls int
	err := RetryErr(context.Background(), RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, permanent) },
	}, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected one call with permanent error, calls=%d err=%v", calls, err)
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryErr(ctx, RetryOpts{MaxAttempts: 3, InitialWait: time.Second}, func(context.Context) error {
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTracedStagePassesThrough(t *testing.T) {
	double := TracedStage("double", func(_ context.Context, v int) Result[int] { return Ok(v * 2) })
	v, err := double(context.Background(), 4).Unwrap()
	if err != nil || v != 8 {
		t.Fatalf("expected 8, got %d %v", v, err)
	}

	failing := TracedStage("fail", func(context.Context, int) Result[int] { return Err[int](errors.New("stop")) })
	if failing(context.Background(), 1).IsOk() {
		t.Fatal("error not propagated")
	}
}

func TestUniqueByFirstWins(t *testing.T) {
	type pair struct{ k, v string }
	out := UniqueBy([]pair{{"a", "1"}, {"b", "2"}, {"a", "3"}}, func(p pair) string { return p.k })
	if len(out) != 2 || out[0].v != "1" {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestFilterAndFlatMap(t *testing.T) {
	evens := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(evens) != 2 {
		t.Fatalf("unexpected: %v", evens)
	}
	flat := FlatMap([]int{1, 2}, func(v int) []int { return []int{v, v} })
	if len(flat) != 4 {
		t.Fatalf("unexpected: %v", flat)
	}
}
