package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/showpulse/engine/run"
	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/engine/snapshot"
	"github.com/WessleyAI/showpulse/engine/summary"
	"github.com/WessleyAI/showpulse/pkg/fn"
	"github.com/WessleyAI/showpulse/pkg/metrics"
	"github.com/WessleyAI/showpulse/pkg/mid"
	"github.com/WessleyAI/showpulse/pkg/natsutil"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored summaries and shows over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 8080, "listen port")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	reg := metrics.New()
	go metrics.CollectRuntime(ctx, reg, 15*time.Second)

	srvAPI := newAPI(store, cfg.CacheTTL, show.Location(cfg.Timezone), a.log)
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "showpulse-serve", a.log)
		if err != nil {
			return err
		}
		defer nc.Drain()
		_, err = natsutil.Subscribe(nc, cfg.NATSSubject, a.log, func(_ context.Context, ev run.RunEvent) {
			srvAPI.invalidate(ev.Date, ev.Shard)
		})
		if err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(cfg.ServePort)),
		Handler:      srvAPI.routes(reg, cfg.CORSOrigin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("api server starting", "port", cfg.ServePort, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// api serves snapshots read through a short-lived cache. Run events evict
// the entries of the shard that just changed.
type api struct {
	store snapshot.Store
	cache *cache.Cache
	loc   *time.Location
	now   func() time.Time
	log   *slog.Logger
}

func newAPI(store snapshot.Store, ttl time.Duration, loc *time.Location, log *slog.Logger) *api {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &api{
		store: store,
		cache: cache.New(ttl, 2*ttl),
		loc:   loc,
		now:   time.Now,
		log:   log,
	}
}

func (s *api) routes(reg *metrics.Registry, corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/shows", s.handleShows)
	mux.Handle("GET /metrics", reg.Handler())

	return mid.Chain(mux,
		mid.OTel("showpulse-api"),
		mid.RequestID(),
		mid.Recover(s.log),
		mid.AccessLog(s.log, reg),
		mid.CORS(corsOrigin),
	)
}

func cacheKey(kind, date, shard string) string { return kind + "|" + date + "|" + shard }

// invalidate drops the cached views of shard and of the combined date.
func (s *api) invalidate(date, shard string) {
	for _, kind := range []string{"summary", "shows"} {
		s.cache.Delete(cacheKey(kind, date, shard))
		s.cache.Delete(cacheKey(kind, date, ""))
	}
	s.log.Debug("cache invalidated", "date", date, "shard", shard)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type summaryResponse struct {
	Date        string          `json:"date"`
	Shard       string          `json:"shard,omitempty"`
	LastUpdated string          `json:"last_updated,omitempty"`
	Movies      summary.Summary `json:"movies"`
}

type showsResponse struct {
	Date        string        `json:"date"`
	Shard       string        `json:"shard,omitempty"`
	LastUpdated string        `json:"last_updated,omitempty"`
	Count       int           `json:"count"`
	Shows       []show.Record `json:"shows"`
}

// handleSummary serves a shard summary, or the combined one when no shard
// is given.
func (s *api) handleSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := s.date(w, r)
	if !ok {
		return
	}
	shard := r.URL.Query().Get("shard")
	key := cacheKey("summary", date, shard)
	if v, found := s.cache.Get(key); found {
		writeJSON(w, http.StatusOK, v)
		return
	}

	resp := summaryResponse{Date: date, Shard: shard}
	var err error
	if shard == "" {
		var c snapshot.Summarized
		_, c, err = s.store.LoadCombined(r.Context(), date)
		resp.LastUpdated, resp.Movies = c.LastUpdated, c.Movies
	} else {
		resp.Movies, err = s.store.LoadSummary(r.Context(), date, shard)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if resp.Movies == nil {
		resp.Movies = summary.Summary{}
	}
	s.cache.SetDefault(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleShows serves the detailed records, optionally only one movie's.
func (s *api) handleShows(w http.ResponseWriter, r *http.Request) {
	date, ok := s.date(w, r)
	if !ok {
		return
	}
	shard := r.URL.Query().Get("shard")
	key := cacheKey("shows", date, shard)

	var resp showsResponse
	if v, found := s.cache.Get(key); found {
		resp = v.(showsResponse)
	} else {
		resp = showsResponse{Date: date, Shard: shard}
		var err error
		if shard == "" {
			var d snapshot.Detailed
			d, _, err = s.store.LoadCombined(r.Context(), date)
			resp.LastUpdated, resp.Shows = d.LastUpdated, d.Data
		} else {
			resp.Shows, err = s.store.Load(r.Context(), date, shard)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.cache.SetDefault(key, resp)
	}

	if movie := strings.TrimSpace(r.URL.Query().Get("movie")); movie != "" {
		resp.Shows = fn.Filter(resp.Shows, func(rec show.Record) bool { return strings.EqualFold(rec.Movie, movie) })
	}
	if resp.Shows == nil {
		resp.Shows = []show.Record{}
	}
	resp.Count = len(resp.Shows)
	writeJSON(w, http.StatusOK, resp)
}

// date reads ?date=YYYYMMDD, defaulting to today.
func (s *api) date(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return show.NewDay(s.now(), s.loc).Code, true
	}
	if _, err := show.ParseDay(raw, s.loc); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q, want YYYYMMDD", raw))
		return "", false
	}
	return raw, true
}

func (s *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.log.Error("snapshot read failed", "path", r.URL.Path, "err", err, "request_id", mid.RequestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
