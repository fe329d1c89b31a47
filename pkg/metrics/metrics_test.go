package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterSeries(t *testing.T) {
	r := New()
	ok := r.Counter("attempts_total", "Attempts.", "outcome", "ok")
	ok.Inc()
	ok.Add(2)
	blocked := r.Counter("attempts_total", "", "outcome", "blocked")
	blocked.Inc()

	if r.Counter("attempts_total", "", "outcome", "ok") != ok {
		t.Fatal("expected same series instance")
	}
	out := r.Render()
	for _, want := range []string{
		"# HELP attempts_total Attempts.",
		"# TYPE attempts_total counter",
		`attempts_total{outcome="blocked"} 1`,
		`attempts_total{outcome="ok"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestGauge(t *testing.T) {
	r := New()
	g := r.Gauge("shows", "")
	g.SetInt(4)
	g.Add(1.5)
	if g.Value() != 5.5 {
		t.Fatalf("expected 5.5, got %v", g.Value())
	}
	if !strings.Contains(r.Render(), "shows 5.5") {
		t.Fatal(r.Render())
	}
}

func TestHistogram(t *testing.T) {
	r := New()
	h := r.Histogram("fetch_seconds", "", []float64{1, 0.1, 0.5}, "source", "BMS")
	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(0.5)
	h.ObserveDuration(2 * time.Second)
	if h.Count() != 4 {
		t.Fatalf("expected 4, got %d", h.Count())
	}
	out := r.Render()
	for _, want := range []string{
		`fetch_seconds_bucket{source="BMS",le="0.1"} 1`,
		`fetch_seconds_bucket{source="BMS",le="0.5"} 3`,
		`fetch_seconds_bucket{source="BMS",le="1"} 3`,
		`fetch_seconds_bucket{source="BMS",le="+Inf"} 4`,
		`fetch_seconds_count{source="BMS"} 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestKindMismatchPanics(t *testing.T) {
	r := New()
	r.Counter("x", "")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.Gauge("x", "")
}

func TestLabelsOddCount(t *testing.T) {
	if Labels("a") != "" {
		t.Fatal("odd label count should render nothing")
	}
	if got := Labels("a", "1", "b", "2"); got != `{a="1",b="2"}` {
		t.Fatalf("got %s", got)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("hits_total", "").Inc()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatal("wrong content type")
	}
	if !strings.Contains(rec.Body.String(), "hits_total 1") {
		t.Fatal(rec.Body.String())
	}
}

func TestCollectRuntime(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		CollectRuntime(ctx, r, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done
	if r.Gauge("showpulse_goroutines", "").Value() < 1 {
		t.Fatal("goroutine gauge not sampled")
	}
}
