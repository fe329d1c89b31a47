// Package merge folds freshly scraped show records into a prior snapshot.
package merge

import (
	"cmp"
	"slices"

	"github.com/WessleyAI/showpulse/engine/show"
)

// Merge returns old updated with fresh. A fresh record whose key is already
// present overwrites the stored one field by field; unseen keys are
// appended in arrival order; old records nobody touched are kept as they
// were. Merge(Merge(old, fresh), fresh) equals Merge(old, fresh).
func Merge(old, fresh []show.Record) []show.Record {
	out := make([]show.Record, 0, len(old)+len(fresh))
	index := make(map[show.Key]int, len(old)+len(fresh))
	for _, r := range old {
		k := r.Key()
		if i, ok := index[k]; ok {
			out[i] = Update(out[i], r)
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	for _, r := range fresh {
		k := r.Key()
		if i, ok := index[k]; ok {
			out[i] = Update(out[i], r)
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// Update overlays next onto prev. Seat counts, gross and flags always come
// from next; text fields only when next has a value; MinutesLeft when next
// carries one.
func Update(prev, next show.Record) show.Record {
	r := prev
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&r.Movie, next.Movie)
	str(&r.City, next.City)
	str(&r.State, next.State)
	str(&r.Venue, next.Venue)
	str(&r.Address, next.Address)
	str(&r.Language, next.Language)
	str(&r.Dimension, next.Dimension)
	str(&r.Chain, next.Chain)
	str(&r.Time, next.Time)
	str(&r.Audi, next.Audi)
	str(&r.SessionID, next.SessionID)
	str(&r.Source, next.Source)
	str(&r.Date, next.Date)
	str(&r.CityKey, next.CityKey)
	str(&r.StateKey, next.StateKey)

	r.TotalSeats = next.TotalSeats
	r.Available = next.Available
	r.Sold = next.Sold
	r.Gross = next.Gross
	r.Clamped = next.Clamped
	if next.MinutesLeft != nil {
		m := *next.MinutesLeft
		r.MinutesLeft = &m
	}
	return r
}

// Dedupe keeps the first record per key and reports how many were dropped.
func Dedupe(records []show.Record) ([]show.Record, int) {
	seen := make(map[show.Key]struct{}, len(records))
	out := make([]show.Record, 0, len(records))
	for _, r := range records {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}

// Sort orders records by movie, city, venue and time, in place.
func Sort(records []show.Record) {
	slices.SortStableFunc(records, func(a, b show.Record) int {
		return cmp.Or(
			cmp.Compare(a.Movie, b.Movie),
			cmp.Compare(a.City, b.City),
			cmp.Compare(a.Venue, b.Venue),
			cmp.Compare(a.Time, b.Time),
		)
	})
}
