// Package resilience guards optional downstream sinks with a circuit
// breaker, so a dead sink costs one fast failure per call instead of a
// timeout.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is a breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrOpen is returned without calling through while the breaker is open.
var ErrOpen = errors.New("circuit open")

// Breaker trips after Threshold consecutive failures and stays open for
// Cooldown. The first call after the cooldown is a probe: success closes
// the breaker, failure reopens it. The zero value uses 3 failures and one
// minute.
type Breaker struct {
	Threshold int
	Cooldown  time.Duration
	// OnChange, when set, observes every transition. It runs with the
	// breaker locked and must not call back into it.
	OnChange func(from, to State)

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	now      func() time.Time
}

func (b *Breaker) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

func (b *Breaker) threshold() int {
	if b.Threshold > 0 {
		return b.Threshold
	}
	return 3
}

func (b *Breaker) cooldown() time.Duration {
	if b.Cooldown > 0 {
		return b.Cooldown
	}
	return time.Minute
}

// must hold mu
func (b *Breaker) set(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.OnChange != nil {
		b.OnChange(from, to)
	}
}

// must hold mu
func (b *Breaker) current() State {
	if b.state == Open && b.clock().Sub(b.openedAt) >= b.cooldown() {
		b.set(HalfOpen)
		b.probing = false
	}
	return b.state
}

// State reports the breaker position, moving an expired Open to HalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Do calls f unless the breaker is open or a probe is already in flight.
func (b *Breaker) Do(ctx context.Context, f func(context.Context) error) error {
	b.mu.Lock()
	switch b.current() {
	case Open:
		b.mu.Unlock()
		return ErrOpen
	case HalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrOpen
		}
		b.probing = true
	}
	b.mu.Unlock()

	err := f(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	// A cancelled caller says nothing about the sink.
	if err != nil && ctx.Err() != nil {
		return err
	}
	if err != nil {
		b.failures++
		if b.state == HalfOpen || b.failures >= b.threshold() {
			b.failures = 0
			b.openedAt = b.clock()
			b.set(Open)
		}
		return err
	}
	b.failures = 0
	b.set(Closed)
	return nil
}
