package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/showpulse/engine/graph"
	"github.com/WessleyAI/showpulse/engine/run"
	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/pkg/fn"
	"github.com/WessleyAI/showpulse/pkg/metrics"
	"github.com/WessleyAI/showpulse/pkg/natsutil"
	"github.com/WessleyAI/showpulse/pkg/repo"
)

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func (a *app) scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch one shard for one date and merge it into the snapshot",
		Long: `Scrape fetches every venue of the shard, retries failures in bounded
rounds, merges the shows into the stored snapshot and rewrites the shard
summary. With --schedule it keeps running and rescrapes on the cron spec.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.scrape(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.String("venues", "", "venue list JSON (default <data-dir>/venues<shard>.json)")
	f.String("strategy", "", "sequential or concurrent (default per source)")
	f.Int("concurrency", 0, "workers for the concurrent strategy")
	f.Duration("api-timeout", 0, "soft per-request timeout")
	f.Duration("hard-timeout", 0, "hard per-attempt deadline")
	f.Int("max-retry-rounds", 0, "retry rounds after the first pass")
	f.Duration("jitter-min", 0, "minimum pause between sequential calls")
	f.Duration("jitter-max", 0, "maximum pause between sequential calls")
	f.Int("cutoff-minutes", 0, "drop shows starting later than this; 0 keeps all")
	f.Float64("rate-limit", 0, "max requests per second for the concurrent strategy")
	f.String("schedule", "", `cron spec to rescrape on, e.g. "*/15 * * * *"`)
	f.Int("metrics-port", 0, "serve /metrics on this port while scraping")
	return cmd
}

func (a *app) scrape(ctx context.Context) error {
	cfg := a.cfg
	src, err := lookupSource(cfg.Source)
	if err != nil {
		return err
	}
	settings := settingsFor(a.v, src.Defaults)
	if err := validateSettings(settings); err != nil {
		return err
	}
	venues, err := show.LoadVenuesFile(cfg.VenuesPath())
	if err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	reg := metrics.New()
	go metrics.CollectRuntime(ctx, reg, 15*time.Second)
	if cfg.MetricsPort > 0 {
		stop := a.serveMetrics(reg, cfg.MetricsPort)
		defer stop()
	}

	p := &run.Pipeline{
		Source:    src,
		Settings:  settings,
		Store:     store,
		Log:       a.log,
		Metrics:   reg,
		Subject:   cfg.NATSSubject,
		SinkRetry: fn.DefaultRetry,
	}
	if err := a.attachSinks(ctx, p); err != nil {
		return err
	}

	once := func(ctx context.Context) error {
		day, err := cfg.Day(a.now())
		if err != nil {
			return err
		}
		rc := run.NewContext(cfg.Shard, day, settings.CutoffMinutes)
		res, err := p.Run(ctx, rc, venues)
		if err != nil {
			return err
		}
		renderRun(a.stdout, res)
		return nil
	}

	if cfg.Schedule == "" {
		return once(ctx)
	}
	return a.poll(ctx, cfg.Schedule, once)
}

// attachSinks connects the optional graph and NATS sinks. A sink that is
// configured but unreachable fails the command before any fetching.
func (a *app) attachSinks(ctx context.Context, p *run.Pipeline) error {
	cfg := a.cfg
	if cfg.Neo4jURL != "" {
		driver, err := graph.Connect(ctx, cfg.Neo4jURL, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, closeFunc(func() error { return driver.Close(context.Background()) }))
		p.Graph = graph.New(repo.DriverSessions(driver), a.log)
	}
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "showpulse-scrape-"+cfg.Source+cfg.Shard, a.log)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, closeFunc(func() error { return nc.Drain() }))
		p.NATS = nc
	}
	return nil
}

// poll runs once immediately, then on every schedule tick until ctx ends.
// A tick that arrives while a run is still going is skipped.
func (a *app) poll(ctx context.Context, schedule string, once func(context.Context) error) error {
	loc := show.Location(a.cfg.Timezone)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	job := func() {
		if err := once(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("scheduled run failed", "err", err)
		}
	}
	if _, err := c.AddFunc(schedule, job); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	if err := once(ctx); err != nil {
		return err
	}
	a.log.Info("polling", "schedule", schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (a *app) serveMetrics(reg *metrics.Registry, port int) func() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// renderRun prints the run totals and the movies by gross.
func renderRun(w io.Writer, res run.Result) {
	ev := res.Event
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s shard %s, %s", ev.Source, ev.Shard, ev.Date))
	t.AppendHeader(table.Row{"Venues", "Fetched", "Failed", "Rounds", "New", "Cut off", "Shows", "Movies"})
	t.AppendRow(table.Row{ev.Venues, ev.Fetched, ev.PermanentFailures, ev.Rounds, res.Fresh, res.CutOff, ev.Shows, ev.Movies})
	t.Render()

	if len(res.Failures) > 0 {
		ft := table.NewWriter()
		ft.SetOutputMirror(w)
		ft.SetStyle(table.StyleLight)
		ft.AppendHeader(table.Row{"Failed venue", "Attempts", "Last error"})
		for _, f := range res.Failures {
			ft.AppendRow(table.Row{f.Venue.ID + " " + f.Venue.Name, f.Attempts, f.Err})
		}
		ft.Render()
	}
	renderSummary(w, res.Summary, 10)
}
