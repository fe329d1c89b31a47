// Package run wires one shard/date scrape: fetch, normalize, cutoff,
// merge with the stored snapshot, aggregate, persist and announce.
package run

import (
	"time"

	"github.com/WessleyAI/showpulse/engine/fetch"
	"github.com/WessleyAI/showpulse/engine/show"
)

// Strategy names.
const (
	StrategySequential = "sequential"
	StrategyConcurrent = "concurrent"
)

// Settings are a vendor's fetch and filter knobs. Config overrides the
// vendor defaults field by field.
type Settings struct {
	Strategy       string
	Concurrency    int
	APITimeout     time.Duration
	HardTimeout    time.Duration
	MaxRetryRounds int
	JitterMin      time.Duration
	JitterMax      time.Duration
	// CutoffMinutes drops shows starting later than this; 0 disables.
	CutoffMinutes int
	// RateLimit is admissions per second for the concurrent strategy; 0
	// disables.
	RateLimit float64
	// Origin is sent as the Origin/Referer of every vendor request.
	Origin string
}

// NormalizeFunc turns one venue payload into records for day.
type NormalizeFunc func(payload []byte, v show.Venue, day show.Day) ([]show.Record, error)

// Source is a vendor adapter.
type Source struct {
	Name      string
	URL       func(day show.Day) fetch.URLFunc
	Normalize NormalizeFunc
	Defaults  Settings
}
