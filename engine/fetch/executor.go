// Package fetch turns a venue list into raw vendor payloads: one bounded
// attempt per venue per round, run under a sequential or concurrent
// strategy, with failed venues retried for a fixed number of rounds.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/WessleyAI/showpulse/engine/identity"
	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/pkg/fn"
	"github.com/WessleyAI/showpulse/pkg/metrics"
)

// URLFunc builds the vendor URL for a venue.
type URLFunc func(show.Venue) string

// Outcome is the result of one attempt. Skipped outcomes were never
// started, or were abandoned, because the context ended first.
type Outcome struct {
	Venue   show.Venue
	Worker  identity.WorkerID
	Status  int
	Payload []byte
	Err     error
	Elapsed time.Duration
	Skipped bool
}

// AttemptFunc performs one attempt for venue v as worker w.
type AttemptFunc func(ctx context.Context, w identity.WorkerID, v show.Venue) Outcome

// Executor performs single attempts. It is safe for concurrent use as long
// as no two goroutines use the same worker id at once.
type Executor struct {
	Provider *identity.Provider
	URL      URLFunc
	// HardTimeout bounds the whole attempt regardless of the client's own
	// timeout. Zero disables it.
	HardTimeout time.Duration
	Source      string
	Log         *slog.Logger
	Metrics     *metrics.Registry
}

type reply struct {
	status int
	body   []byte
}

// Attempt makes exactly one round trip for v using the worker's identity.
func (e *Executor) Attempt(ctx context.Context, w identity.WorkerID, v show.Venue) Outcome {
	start := time.Now()
	out := Outcome{Venue: v, Worker: w}
	if err := ctx.Err(); err != nil {
		out.Err, out.Skipped = err, true
		return out
	}

	id := e.Provider.Acquire(w)
	url := e.URL(v)
	res := fn.WithDeadline(ctx, e.HardTimeout, func(ctx context.Context) fn.Result[reply] {
		resp, err := id.Get(ctx, url)
		if err != nil {
			return fn.Err[reply](err)
		}
		return fn.Ok(reply{status: resp.StatusCode(), body: resp.Body()})
	})
	out.Elapsed = time.Since(start)

	r, err := res.Unwrap()
	switch {
	case err == nil:
		out.Status = r.status
		out.Payload, out.Err = classify(v.ID, r.status, r.body)
	case ctx.Err() != nil:
		// The caller gave up, not the vendor: no attempt is charged and the
		// identity stays.
		out.Err, out.Skipped = ctx.Err(), true
	case errors.Is(err, fn.ErrDeadline):
		out.Err = &FetchError{Venue: v.ID, Kind: KindDeadline, Err: ErrDeadline,
			Detail: fmt.Sprintf("no response within %s", e.HardTimeout)}
	default:
		out.Err = &FetchError{Venue: v.ID, Kind: KindNetwork, Err: ErrNetwork, Detail: err.Error()}
	}
	e.record(out)
	return out
}

func (e *Executor) record(o Outcome) {
	outcome := "ok"
	if o.Err != nil {
		outcome = string(KindOf(o.Err))
		if outcome == "" {
			outcome = "cancelled"
		}
	}
	if e.Metrics != nil {
		e.Metrics.Counter("showpulse_fetch_attempts_total", "Venue fetch attempts by outcome.",
			"source", e.Source, "outcome", outcome).Inc()
		e.Metrics.Histogram("showpulse_fetch_duration_seconds", "Venue fetch attempt latency.", nil,
			"source", e.Source).ObserveDuration(o.Elapsed)
	}
	if e.Log != nil && o.Err != nil {
		e.Log.Debug("attempt failed", "venue", o.Venue.ID, "worker", int(o.Worker),
			"outcome", outcome, "elapsed", o.Elapsed, "err", o.Err)
	}
}

// classify accepts only bodies that are a single JSON object. Anything
// else is either an anti-bot page or a broken response.
func classify(venue string, status int, body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &FetchError{Venue: venue, Kind: KindBlocked, Status: status, Err: ErrBlocked,
			Detail: blockDetail(trimmed)}
	}
	if !json.Valid(trimmed) {
		return nil, &FetchError{Venue: venue, Kind: KindNetwork, Status: status, Err: ErrNetwork,
			Detail: "truncated or invalid JSON"}
	}
	if status >= 400 {
		return nil, &FetchError{Venue: venue, Kind: KindNetwork, Status: status, Err: ErrNetwork}
	}
	return trimmed, nil
}

// blockDetail names the block page by its <title>, or by its first bytes.
func blockDetail(body []byte) string {
	if len(body) == 0 {
		return "empty body"
	}
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
			return title
		}
	}
	const max = 80
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
