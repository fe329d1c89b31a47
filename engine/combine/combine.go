// Package combine merges every shard snapshot of a date into the final
// detailed and summary outputs.
package combine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/showpulse/engine/merge"
	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/engine/snapshot"
	"github.com/WessleyAI/showpulse/engine/summary"
)

// StampLayout formats last_updated, e.g. "2025-01-10 18:05 IST".
const StampLayout = "2006-01-02 15:04 MST"

// Result describes one combine.
type Result struct {
	Shards     []string
	Raw        int
	Duplicates int
	Detailed   snapshot.Detailed
	Summary    snapshot.Summarized
}

// Combiner reads shard snapshots from Store and writes the combined outputs
// back to it.
type Combiner struct {
	Store snapshot.Store
	Log   *slog.Logger
	Now   func() time.Time
	Loc   *time.Location
}

// Combine loads all shards of date, canonicalizes and de-duplicates their
// records (first shard wins), sorts them and writes both outputs.
func (c *Combiner) Combine(ctx context.Context, date string) (Result, error) {
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Loc
	if loc == nil {
		loc = show.Location("")
	}

	shards, err := c.Store.Shards(ctx, date)
	if err != nil {
		return Result{}, err
	}
	res := Result{Shards: shards}

	var all []show.Record
	for _, shard := range shards {
		recs, err := c.Store.Load(ctx, date, shard)
		if err != nil {
			return res, fmt.Errorf("shard %s: %w", shard, err)
		}
		log.Info("shard loaded", "date", date, "shard", shard, "rows", len(recs))
		all = append(all, recs...)
	}
	res.Raw = len(all)

	for i := range all {
		all[i] = show.Canonicalize(all[i], date)
	}
	final, dupes := merge.Dedupe(all)
	merge.Sort(final)
	res.Duplicates = dupes

	stamp := now().In(loc).Format(StampLayout)
	res.Detailed = snapshot.Detailed{LastUpdated: stamp, Data: final}
	res.Summary = snapshot.Summarized{LastUpdated: stamp, Movies: summary.Aggregate(final)}
	if res.Detailed.Data == nil {
		res.Detailed.Data = []show.Record{}
	}

	if err := c.Store.SaveCombined(ctx, date, res.Detailed, res.Summary); err != nil {
		return res, fmt.Errorf("save combined: %w", err)
	}
	log.Info("combined", "date", date, "shards", len(shards), "raw", res.Raw,
		"duplicates", dupes, "rows", len(final), "movies", len(res.Summary.Movies))
	return res, nil
}
