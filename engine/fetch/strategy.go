package fetch

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/WessleyAI/showpulse/engine/identity"
	"github.com/WessleyAI/showpulse/engine/show"
)

// Strategy runs one attempt for every venue in a round. Outcomes are
// returned by venue index.
type Strategy interface {
	Round(ctx context.Context, venues []show.Venue, attempt AttemptFunc) []Outcome
}

// Sequential visits venues in order as worker 0, sleeping a uniform random
// jitter between calls.
type Sequential struct {
	JitterMin time.Duration
	JitterMax time.Duration
	// Sleep defaults to a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// Progress, when set, is called before each venue with its 1-based
	// position.
	Progress func(i, n int, v show.Venue)
}

func (s *Sequential) Round(ctx context.Context, venues []show.Venue, attempt AttemptFunc) []Outcome {
	out := make([]Outcome, len(venues))
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	for i, v := range venues {
		if i > 0 {
			if d := s.jitter(); d > 0 {
				if err := sleep(ctx, d); err != nil {
					skipFrom(out, venues, i, err)
					return out
				}
			}
		}
		if err := ctx.Err(); err != nil {
			skipFrom(out, venues, i, err)
			return out
		}
		if s.Progress != nil {
			s.Progress(i+1, len(venues), v)
		}
		out[i] = attempt(ctx, 0, v)
	}
	return out
}

func (s *Sequential) jitter() time.Duration {
	lo, hi := s.JitterMin, s.JitterMax
	if hi < lo {
		hi = lo
	}
	if hi <= 0 {
		return 0
	}
	if hi == lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}

// Concurrent runs up to Workers attempts at once. A permit channel holds
// the idle worker ids, so a worker id and its identity are only ever held
// by one in-flight attempt.
type Concurrent struct {
	Workers int
	// Limiter, when set, paces admissions.
	Limiter *rate.Limiter
}

func (c *Concurrent) Round(ctx context.Context, venues []show.Venue, attempt AttemptFunc) []Outcome {
	n := c.Workers
	if n < 1 {
		n = 1
	}
	permits := make(chan identity.WorkerID, n)
	for w := 0; w < n; w++ {
		permits <- identity.WorkerID(w)
	}

	out := make([]Outcome, len(venues))
	var wg sync.WaitGroup
admit:
	for i, v := range venues {
		var w identity.WorkerID
		select {
		case w = <-permits:
		case <-ctx.Done():
			skipFrom(out, venues, i, ctx.Err())
			break admit
		}
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				permits <- w
				skipFrom(out, venues, i, err)
				break admit
			}
		}
		wg.Add(1)
		go func(i int, v show.Venue, w identity.WorkerID) {
			defer wg.Done()
			defer func() { permits <- w }()
			out[i] = attempt(ctx, w, v)
		}(i, v, w)
	}
	wg.Wait()
	return out
}

func skipFrom(out []Outcome, venues []show.Venue, from int, err error) {
	for j := from; j < len(venues); j++ {
		out[j] = Outcome{Venue: venues[j], Err: err, Skipped: true}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
