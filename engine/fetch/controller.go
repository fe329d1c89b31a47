package fetch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/WessleyAI/showpulse/engine/identity"
	"github.com/WessleyAI/showpulse/engine/show"
)

// DefaultMaxRounds is the number of retry rounds after the first pass.
const DefaultMaxRounds = 5

// State is a venue task's position in its lifecycle.
type State int

const (
	Pending State = iota
	InFlight
	Succeeded
	Failed
	PermanentlyFailed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case PermanentlyFailed:
		return "permanently_failed"
	}
	return "unknown"
}

// Task tracks one venue through a run.
type Task struct {
	Venue    show.Venue
	State    State
	Attempts int
	LastErr  error
}

// Success is a fetched payload.
type Success struct {
	Venue   show.Venue
	Payload []byte
}

// Failure is a venue that never succeeded.
type Failure struct {
	Venue    show.Venue
	Err      error
	Attempts int
}

// Report summarizes a controller run. Successes and Failures follow the
// venue list order.
type Report struct {
	Successes []Success
	Failures  []Failure
	Attempts  map[string]int
	// Rounds counts passes actually run, the first pass included.
	Rounds int
}

// Controller drives the first pass and the retry rounds. Only Run's own
// goroutine touches the task list; strategies hand back outcomes.
type Controller struct {
	Strategy Strategy
	Attempt  AttemptFunc
	// Invalidate is called with the worker of every failed attempt before
	// the worker is released.
	Invalidate func(identity.WorkerID)
	MaxRounds  int
	Log        *slog.Logger
	// OnOutcome observes every started attempt. It may be called from
	// several goroutines.
	OnOutcome func(Outcome)
}

var errNotAttempted = errors.New("not attempted")

// Run fetches every venue, retrying failures for up to MaxRounds rounds.
// Each venue is attempted at most 1+MaxRounds times.
func (c *Controller) Run(ctx context.Context, venues []show.Venue) Report {
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	maxRounds := c.MaxRounds
	if maxRounds < 0 {
		maxRounds = 0
	}

	tasks := make([]*Task, len(venues))
	for i, v := range venues {
		tasks[i] = &Task{Venue: v}
	}
	payloads := make(map[*Task][]byte, len(tasks))
	pending := tasks
	rep := Report{Attempts: make(map[string]int, len(tasks))}

	attempt := func(ctx context.Context, w identity.WorkerID, v show.Venue) Outcome {
		o := c.Attempt(ctx, w, v)
		if o.Skipped {
			return o
		}
		if o.Err != nil && c.Invalidate != nil {
			c.Invalidate(w)
		}
		if c.OnOutcome != nil {
			c.OnOutcome(o)
		}
		return o
	}

	for round := 0; round <= maxRounds && len(pending) > 0; round++ {
		if ctx.Err() != nil {
			break
		}
		if round > 0 {
			log.Info("retry round", "round", round, "max_rounds", maxRounds, "venues", len(pending))
		}
		batch := make([]show.Venue, len(pending))
		for i, t := range pending {
			t.State = InFlight
			batch[i] = t.Venue
		}

		outs := c.Strategy.Round(ctx, batch, attempt)
		rep.Rounds++

		var next []*Task
		for i, t := range pending {
			o := outs[i]
			if o.Skipped {
				t.State = Pending
				next = append(next, t)
				continue
			}
			t.Attempts++
			if o.Err == nil {
				t.State = Succeeded
				payloads[t] = o.Payload
				continue
			}
			t.State = Failed
			t.LastErr = o.Err
			next = append(next, t)
		}
		pending = next
	}

	for _, t := range pending {
		t.State = PermanentlyFailed
		if t.LastErr == nil {
			t.LastErr = errNotAttempted
			if err := ctx.Err(); err != nil {
				t.LastErr = err
			}
		}
	}
	for _, t := range tasks {
		rep.Attempts[t.Venue.ID] = t.Attempts
		switch t.State {
		case Succeeded:
			rep.Successes = append(rep.Successes, Success{Venue: t.Venue, Payload: payloads[t]})
		case PermanentlyFailed:
			rep.Failures = append(rep.Failures, Failure{Venue: t.Venue, Err: t.LastErr, Attempts: t.Attempts})
			log.Warn("venue permanently failed", "venue", t.Venue.ID, "attempts", t.Attempts, "err", t.LastErr)
		}
	}
	return rep
}
