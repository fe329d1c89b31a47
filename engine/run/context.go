package run

import (
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/showpulse/engine/show"
)

// Context is what one run knows about itself. It is passed explicitly to
// every phase instead of living in package state.
type Context struct {
	ID    string
	Shard string
	Day   show.Day
	// CutoffMinutes drops shows starting later than this from Now; 0 keeps
	// everything.
	CutoffMinutes int
	Now           func() time.Time
}

// NewContext returns a Context with a fresh run id and the wall clock.
func NewContext(shard string, day show.Day, cutoff int) Context {
	return Context{
		ID:            uuid.NewString(),
		Shard:         shard,
		Day:           day,
		CutoffMinutes: cutoff,
		Now:           time.Now,
	}
}

// Clock returns the current time in the day's location.
func (c Context) Clock() time.Time {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return now().In(c.Day.Loc())
}

// applyCutoff stamps minutes_left on every record and drops those starting
// more than cutoff minutes from now. Unparsed times are kept with
// show.UnknownMinutes.
func applyCutoff(records []show.Record, cutoff int, now time.Time) (kept []show.Record, dropped int) {
	if cutoff <= 0 {
		return records, 0
	}
	kept = records[:0:0]
	for _, r := range records {
		mins, ok := show.MinutesLeft(r.Time, now)
		if ok && mins > float64(cutoff) {
			dropped++
			continue
		}
		if !ok {
			mins = show.UnknownMinutes
		}
		r.MinutesLeft = &mins
		kept = append(kept, r)
	}
	return kept, dropped
}
