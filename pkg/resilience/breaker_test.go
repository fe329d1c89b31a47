package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errSink = errors.New("sink down")

func fail(context.Context) error    { return errSink }
func succeed(context.Context) error { return nil }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestBreakerTripsAndRecovers(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
	var transitions []string
	b := &Breaker{Threshold: 2, Cooldown: time.Minute, now: clk.now,
		OnChange: func(from, to State) { transitions = append(transitions, from.String()+">"+to.String()) }}
	ctx := context.Background()

	if err := b.Do(ctx, fail); !errors.Is(err, errSink) {
		t.Fatalf("first failure: %v", err)
	}
	if b.State() != Closed {
		t.Fatal("one failure must not trip")
	}
	b.Do(ctx, fail)
	if b.State() != Open {
		t.Fatalf("state %s after threshold", b.State())
	}

	called := false
	if err := b.Do(ctx, func(context.Context) error { called = true; return nil }); !errors.Is(err, ErrOpen) || called {
		t.Fatalf("open breaker called through: err=%v called=%v", err, called)
	}

	clk.t = clk.t.Add(time.Minute)
	if b.State() != HalfOpen {
		t.Fatalf("state %s after cooldown", b.State())
	}
	if err := b.Do(ctx, succeed); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("state %s after good probe", b.State())
	}

	want := []string{"closed>open", "open>half-open", "half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions %v, want %v", transitions, want)
		}
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := &Breaker{Threshold: 1, Cooldown: time.Second, now: clk.now}
	ctx := context.Background()

	b.Do(ctx, fail)
	clk.t = clk.t.Add(time.Second)
	b.Do(ctx, fail)
	if b.State() != Open {
		t.Fatalf("state %s after failed probe", b.State())
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := &Breaker{Threshold: 2}
	ctx := context.Background()
	b.Do(ctx, fail)
	b.Do(ctx, succeed)
	b.Do(ctx, fail)
	if b.State() != Closed {
		t.Fatal("failures are counted consecutively")
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	b := &Breaker{Threshold: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	if b.State() != Closed {
		t.Fatal("cancelled call tripped the breaker")
	}
}
