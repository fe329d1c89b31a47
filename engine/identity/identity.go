// Package identity hands each fetch worker its own client identity: a user
// agent, a spoofed forwarding address and an HTTP client that keeps its own
// cookies and presents a browser TLS fingerprint. An identity is never shared between workers and
// is thrown away as soon as a request made with it fails.
package identity

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	utls "github.com/refraction-networking/utls"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/WessleyAI/showpulse/pkg/metrics"
)

// WorkerID names a fetch worker. Sequential runs use worker 0.
type WorkerID int

// DefaultUserAgents is the desktop browser pool identities draw from.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// Config shapes the identities a Provider builds.
type Config struct {
	// Origin is sent as Origin and Referer when set.
	Origin string
	// Timeout is the client's own (soft) request timeout.
	Timeout    time.Duration
	UserAgents []string
	// Fingerprint is the TLS ClientHello to mimic. The zero value uses
	// DefaultFingerprint.
	Fingerprint utls.ClientHelloID
	// RootCAs verifies vendor certificates; nil uses the system pool.
	RootCAs *x509.CertPool
	// Transport overrides the per-identity transport, mostly for tests.
	Transport http.RoundTripper
}

// Identity is one worker's client persona.
type Identity struct {
	Worker       WorkerID
	UserAgent    string
	ForwardedFor string
	Created      time.Time

	client *resty.Client
}

// Get performs one GET with the identity's headers and cookies.
func (id *Identity) Get(ctx context.Context, url string) (*resty.Response, error) {
	return id.client.R().SetContext(ctx).Get(url)
}

func (id *Identity) close() {
	id.client.GetClient().CloseIdleConnections()
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for rotation events.
func WithLogger(l *slog.Logger) Option { return func(p *Provider) { p.log = l } }

// WithMetrics counts identity creations and invalidations in reg.
func WithMetrics(reg *metrics.Registry, source string) Option {
	return func(p *Provider) {
		p.created = reg.Counter("showpulse_identity_created_total", "Worker identities built.", "source", source)
		p.rotated = reg.Counter("showpulse_identity_rotations_total", "Worker identities torn down after a failure.", "source", source)
	}
}

// WithRand replaces the random source, for deterministic tests.
func WithRand(r *rand.Rand) Option { return func(p *Provider) { p.rng = r } }

// Provider owns the worker-id to identity map.
type Provider struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	created *metrics.Counter
	rotated *metrics.Counter

	mu  sync.Mutex
	rng *rand.Rand
	ids map[WorkerID]*Identity
}

// NewProvider returns a Provider with no identities yet.
func NewProvider(cfg Config, opts ...Option) *Provider {
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	if cfg.Fingerprint.Client == "" {
		cfg.Fingerprint = DefaultFingerprint
	}
	p := &Provider{
		cfg: cfg,
		log: slog.Default(),
		now: time.Now,
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		ids: make(map[WorkerID]*Identity),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Acquire returns the worker's identity, building one if it has none.
func (p *Provider) Acquire(worker WorkerID) *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.ids[worker]; ok {
		return id
	}
	id := p.build(worker)
	p.ids[worker] = id
	if p.created != nil {
		p.created.Inc()
	}
	p.log.Debug("identity created", "worker", int(worker), "ua", id.UserAgent, "xff", id.ForwardedFor)
	return id
}

// Invalidate drops the worker's identity. The next Acquire builds a fresh one.
func (p *Provider) Invalidate(worker WorkerID) {
	p.mu.Lock()
	id, ok := p.ids[worker]
	delete(p.ids, worker)
	p.mu.Unlock()
	if !ok {
		return
	}
	id.close()
	if p.rotated != nil {
		p.rotated.Inc()
	}
	p.log.Debug("identity invalidated", "worker", int(worker))
}

// Len reports how many workers currently hold an identity.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

// Close tears down every identity.
func (p *Provider) Close() {
	p.mu.Lock()
	ids := p.ids
	p.ids = make(map[WorkerID]*Identity)
	p.mu.Unlock()
	for _, id := range ids {
		id.close()
	}
}

// build must be called with p.mu held.
func (p *Provider) build(worker WorkerID) *Identity {
	ua := p.cfg.UserAgents[p.rng.IntN(len(p.cfg.UserAgents))]
	xff := fmt.Sprintf("%d.%d.%d.%d", p.octet(), p.octet(), p.octet(), p.octet())

	base := p.cfg.Transport
	if base == nil {
		base = browserTransport(p.cfg.Fingerprint, p.cfg.RootCAs)
	}
	jar, _ := cookiejar.New(nil)

	c := resty.New().
		SetTransport(otelhttp.NewTransport(base)).
		SetCookieJar(jar).
		SetHeaders(map[string]string{
			"User-Agent":         ua,
			"Accept":             "application/json, text/plain, */*",
			"Accept-Language":    "en-IN,en;q=0.9",
			"X-Forwarded-For":    xff,
			"Sec-Ch-Ua":          `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`,
			"Sec-Ch-Ua-Mobile":   "?0",
			"Sec-Ch-Ua-Platform": `"Windows"`,
			"Sec-Fetch-Dest":     "empty",
			"Sec-Fetch-Mode":     "cors",
			"Sec-Fetch-Site":     "same-site",
		})
	if p.cfg.Origin != "" {
		c.SetHeader("Origin", p.cfg.Origin).SetHeader("Referer", p.cfg.Origin+"/")
	}
	if p.cfg.Timeout > 0 {
		c.SetTimeout(p.cfg.Timeout)
	}

	return &Identity{
		Worker:       worker,
		UserAgent:    ua,
		ForwardedFor: xff,
		Created:      p.now(),
		client:       c,
	}
}

func (p *Provider) octet() int { return 20 + p.rng.IntN(211) }
