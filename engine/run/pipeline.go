package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/showpulse/engine/fetch"
	"github.com/WessleyAI/showpulse/engine/identity"
	"github.com/WessleyAI/showpulse/engine/merge"
	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/engine/snapshot"
	"github.com/WessleyAI/showpulse/engine/summary"
	"github.com/WessleyAI/showpulse/pkg/fn"
	"github.com/WessleyAI/showpulse/pkg/metrics"
	"github.com/WessleyAI/showpulse/pkg/natsutil"
	"github.com/WessleyAI/showpulse/pkg/resilience"
)

// DefaultSubject carries RunEvents.
const DefaultSubject = "showpulse.run.completed"

// Mirror receives the merged snapshot after it is saved.
type Mirror interface {
	Mirror(ctx context.Context, records []show.Record) error
}

// RunEvent announces a finished run.
type RunEvent struct {
	RunID             string    `json:"run_id"`
	Source            string    `json:"source"`
	Shard             string    `json:"shard"`
	Date              string    `json:"date"`
	Venues            int       `json:"venues"`
	Fetched           int       `json:"fetched"`
	PermanentFailures int       `json:"permanent_failures"`
	Shows             int       `json:"shows"`
	Movies            int       `json:"movies"`
	Rounds            int       `json:"rounds"`
	Started           time.Time `json:"started"`
	Finished          time.Time `json:"finished"`
}

// Result is what a run produced.
type Result struct {
	Event    RunEvent
	Failures []fetch.Failure
	// Fresh counts records from this run after the cutoff filter.
	Fresh     int
	CutOff    int
	Malformed int
	Records   []show.Record
	Summary   summary.Summary
}

// Pipeline runs one source for one shard and date.
type Pipeline struct {
	Source   Source
	Settings Settings
	Store    snapshot.Store
	Log      *slog.Logger
	Metrics  *metrics.Registry

	// Graph and NATS are optional sinks. Their failures are logged only,
	// and a sink failing three runs in a row is skipped for a minute.
	Graph   Mirror
	NATS    *nats.Conn
	Subject string
	// SinkRetry shapes retries of each sink write. The zero value tries
	// once.
	SinkRetry fn.RetryOpts

	// Transport overrides the vendor transport, for tests.
	Transport http.RoundTripper

	guardOnce  sync.Once
	graphGuard resilience.Breaker
	natsGuard  resilience.Breaker
}

// Run executes the whole pipeline. Permanent venue failures are reported
// in the Result, never as an error; a corrupt prior snapshot or a failed
// save is.
func (p *Pipeline) Run(ctx context.Context, rc Context, venues []show.Venue) (Result, error) {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run_id", rc.ID, "source", p.Source.Name, "shard", rc.Shard, "date", rc.Day.Code)
	started := time.Now()
	log.Info("run started", "venues", len(venues), "strategy", p.Settings.Strategy,
		"max_retry_rounds", p.Settings.MaxRetryRounds, "cutoff_minutes", rc.CutoffMinutes)

	opts := []identity.Option{identity.WithLogger(log)}
	if p.Metrics != nil {
		opts = append(opts, identity.WithMetrics(p.Metrics, p.Source.Name))
	}
	provider := identity.NewProvider(identity.Config{
		Origin:    p.Settings.Origin,
		Timeout:   p.Settings.APITimeout,
		Transport: p.Transport,
	}, opts...)
	defer provider.Close()

	fetchStage := fn.TracedStage("run.fetch", func(ctx context.Context, vs []show.Venue) fn.Result[fetch.Report] {
		return fn.Ok(p.controller(provider, rc, log).Run(ctx, vs))
	})
	rep, _ := fetchStage(ctx, venues).Unwrap()
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("run %s: %w", rc.ID, err)
	}

	res := Result{Failures: rep.Failures}
	fresh := fn.FlatMap(rep.Successes, func(s fetch.Success) []show.Record {
		recs, err := p.Source.Normalize(s.Payload, s.Venue, rc.Day)
		if err != nil {
			res.Malformed++
			log.Warn("payload skipped", "venue", s.Venue.ID, "err", err)
			return nil
		}
		for i := range recs {
			recs[i] = show.Canonicalize(recs[i], rc.Day.Code)
		}
		return recs
	})
	fresh, res.CutOff = applyCutoff(fresh, rc.CutoffMinutes, rc.Clock())
	res.Fresh = len(fresh)

	persist := fn.TracedStage("run.persist", func(ctx context.Context, fresh []show.Record) fn.Result[[]show.Record] {
		old, err := p.Store.Load(ctx, rc.Day.Code, rc.Shard)
		if err != nil {
			return fn.Err[[]show.Record](fmt.Errorf("load snapshot: %w", err))
		}
		merged := merge.Merge(old, fresh)
		if err := p.Store.Save(ctx, rc.Day.Code, rc.Shard, merged); err != nil {
			return fn.Err[[]show.Record](fmt.Errorf("save snapshot: %w", err))
		}
		return fn.Ok(merged)
	})
	merged, err := persist(ctx, fresh).Unwrap()
	if err != nil {
		return Result{}, err
	}
	res.Records = merged
	res.Summary = summary.Aggregate(merged)
	if err := p.Store.SaveSummary(ctx, rc.Day.Code, rc.Shard, res.Summary); err != nil {
		return Result{}, fmt.Errorf("save summary: %w", err)
	}

	res.Event = RunEvent{
		RunID:             rc.ID,
		Source:            p.Source.Name,
		Shard:             rc.Shard,
		Date:              rc.Day.Code,
		Venues:            len(venues),
		Fetched:           len(rep.Successes),
		PermanentFailures: len(rep.Failures),
		Shows:             len(merged),
		Movies:            len(res.Summary),
		Rounds:            rep.Rounds,
		Started:           started,
		Finished:          time.Now(),
	}
	log.Info("run finished",
		"fetched", len(rep.Successes),
		"permanent_failures", len(rep.Failures),
		"fresh", res.Fresh,
		"cut_off", res.CutOff,
		"malformed", res.Malformed,
		"shows", len(merged),
		"rounds", rep.Rounds,
		"elapsed", time.Since(started),
	)
	p.record(res)
	p.announce(ctx, log, res)
	return res, nil
}

func (p *Pipeline) controller(provider *identity.Provider, rc Context, log *slog.Logger) *fetch.Controller {
	s := p.Settings
	exec := &fetch.Executor{
		Provider:    provider,
		URL:         p.Source.URL(rc.Day),
		HardTimeout: s.HardTimeout,
		Source:      p.Source.Name,
		Log:         log,
		Metrics:     p.Metrics,
	}

	var strategy fetch.Strategy
	switch s.Strategy {
	case StrategyConcurrent:
		c := &fetch.Concurrent{Workers: s.Concurrency}
		if s.RateLimit > 0 {
			c.Limiter = rate.NewLimiter(rate.Limit(s.RateLimit), 1)
		}
		strategy = c
	default:
		strategy = &fetch.Sequential{
			JitterMin: s.JitterMin,
			JitterMax: s.JitterMax,
			Progress: func(i, n int, v show.Venue) {
				log.Info(fmt.Sprintf("[%d/%d] %s", i, n, v.Name), "venue", v.ID)
			},
		}
	}

	return &fetch.Controller{
		Strategy:   strategy,
		Attempt:    exec.Attempt,
		Invalidate: provider.Invalidate,
		MaxRounds:  s.MaxRetryRounds,
		Log:        log,
	}
}

func (p *Pipeline) record(res Result) {
	if p.Metrics == nil {
		return
	}
	labels := []string{"source", p.Source.Name, "shard", res.Event.Shard}
	p.Metrics.Gauge("showpulse_permanent_failures", "Venues that failed every attempt in the last run.", labels...).
		SetInt(res.Event.PermanentFailures)
	p.Metrics.Gauge("showpulse_shows", "Shows in the merged snapshot after the last run.", labels...).
		SetInt(res.Event.Shows)
	p.Metrics.Counter("showpulse_runs_total", "Completed runs.", "source", p.Source.Name).Inc()
}

// watch reports every transition of a sink breaker. The gauge holds
// 0 closed, 1 open, 2 half-open.
func (p *Pipeline) watch(b *resilience.Breaker, sink string) {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	var gauge *metrics.Gauge
	if p.Metrics != nil {
		gauge = p.Metrics.Gauge("showpulse_sink_circuit_state", "Sink breaker state: 0 closed, 1 open, 2 half-open.", "sink", sink)
	}
	b.OnChange = func(from, to resilience.State) {
		log.Warn("sink circuit changed", "sink", sink, "from", from.String(), "to", to.String())
		if gauge != nil {
			gauge.SetInt(int(to))
		}
	}
}

func (p *Pipeline) announce(ctx context.Context, log *slog.Logger, res Result) {
	p.guardOnce.Do(func() {
		p.watch(&p.graphGuard, "graph")
		p.watch(&p.natsGuard, "nats")
	})
	if p.Graph != nil {
		err := p.graphGuard.Do(ctx, func(ctx context.Context) error {
			return fn.RetryErr(ctx, p.SinkRetry, func(ctx context.Context) error {
				return p.Graph.Mirror(ctx, res.Records)
			})
		})
		switch {
		case errors.Is(err, resilience.ErrOpen):
			log.Warn("graph mirror skipped, circuit open")
		case err != nil:
			log.Error("graph mirror failed", "err", err)
		}
	}
	if p.NATS != nil {
		subject := p.Subject
		if subject == "" {
			subject = DefaultSubject
		}
		err := p.natsGuard.Do(ctx, func(ctx context.Context) error {
			return fn.RetryErr(ctx, p.SinkRetry, func(ctx context.Context) error {
				return natsutil.Publish(ctx, p.NATS, subject, res.Event)
			})
		})
		switch {
		case errors.Is(err, resilience.ErrOpen):
			log.Warn("run event skipped, circuit open", "subject", subject)
		case err != nil:
			log.Error("run event publish failed", "subject", subject, "err", err)
		}
	}
}
