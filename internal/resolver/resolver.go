// Package resolver implements the cache-aware, single-flight HLR lookup
// that the submit pipeline classifies every destination address through.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/smppgw/gateway/internal/hlr"
	"github.com/smppgw/gateway/internal/metrics"
	"github.com/smppgw/gateway/internal/store"
	"github.com/smppgw/gateway/pkg/errors"
)

// ErrHLRTimeout is returned when the HLR provider does not respond within
// the configured timeout.
var ErrHLRTimeout = errors.New("hlr: request timed out")

// ErrHLRTransport is returned for non-2xx responses, transport failures,
// and malformed JSON bodies.
var ErrHLRTransport = errors.New("hlr: transport error")

// Config configures the resolver's HLR provider and concurrency bounds.
type Config struct {
	BaseURL        string        `env:"HLR_BASE_URL"`
	APIKey         string        `env:"HLR_API_KEY"`
	APISecret      string        `env:"HLR_API_SECRET"`
	Timeout        time.Duration `env:"HLR_TIMEOUT"         envDefault:"5s"`
	MaxConcurrency int64         `env:"HLR_MAX_CONCURRENCY" envDefault:"100"`
}

// Cache is the slice of the HLR cache the resolver depends on.
type Cache interface {
	Get(ctx context.Context, msisdn string) (hlr.Record, bool)
	Set(ctx context.Context, msisdn string, rec hlr.Record)
}

// Store is the slice of the durable lookup log the resolver depends on.
type Store interface {
	Append(ctx context.Context, row store.Row) error
}

// Resolver is the single-flight, cache-aware HLR lookup.
type Resolver struct {
	cfg    Config
	cache  Cache
	store  Store
	client *http.Client
	sem    *semaphore.Weighted
	sf     singleflight.Group
	m      *metrics.Metrics
	logger *slog.Logger
}

// New builds a Resolver. st may be nil, in which case lookups still work
// but nothing is persisted.
func New(cfg Config, c Cache, st Store, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 100
	}
	return &Resolver{
		cfg:    cfg,
		cache:  c,
		store:  st,
		client: &http.Client{Timeout: cfg.Timeout},
		sem:    semaphore.NewWeighted(cfg.MaxConcurrency),
		m:      m,
		logger: logger,
	}
}

// Lookup resolves msisdn to its classified HLR record, consulting the
// cache first and collapsing concurrent misses for the same MSISDN into
// a single outbound HTTP request.
func (r *Resolver) Lookup(ctx context.Context, msisdn, sourceIP string) (hlr.Record, error) {
	if rec, ok := r.cache.Get(ctx, msisdn); ok {
		r.m.HLRCacheHits.Inc()
		return rec, nil
	}

	v, err, _ := r.sf.Do(msisdn, func() (interface{}, error) {
		return r.resolve(msisdn, sourceIP)
	})
	if err != nil {
		return hlr.Record{}, err
	}
	return v.(hlr.Record), nil
}

// resolve runs under the resolver's singleflight group: exactly one
// goroutine executes this per MSISDN at a time, regardless of how many
// callers were waiting on Lookup for the same key.
func (r *Resolver) resolve(msisdn, sourceIP string) (hlr.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return hlr.Record{}, errors.Wrap(ErrHLRTimeout, err)
	}
	defer r.sem.Release(1)

	if rec, ok := r.cache.Get(ctx, msisdn); ok {
		r.m.HLRCacheHits.Inc()
		return rec, nil
	}
	r.m.HLRCacheMisses.Inc()

	start := time.Now()
	rec, err := r.fetch(ctx, msisdn)
	latency := time.Since(start)
	r.m.HLRLatencySeconds.Observe(latency.Seconds())

	if err != nil {
		result := "error"
		if errors.Contains(err, ErrHLRTimeout) {
			result = "timeout"
		}
		r.m.HLRRequestsTotal.WithLabelValues(result).Inc()
		return hlr.Record{}, err
	}
	r.m.HLRRequestsTotal.WithLabelValues("success").Inc()

	rec = hlr.WithClassification(rec)
	r.cache.Set(ctx, msisdn, rec)

	if r.store != nil {
		go r.appendDetached(rec, latency, false, sourceIP)
	}

	return rec, nil
}

func (r *Resolver) fetch(ctx context.Context, msisdn string) (hlr.Record, error) {
	reqURL := fmt.Sprintf("%s/%s/%s/%s", r.cfg.BaseURL, r.cfg.APIKey, r.cfg.APISecret, msisdn)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return hlr.Record{}, errors.Wrap(ErrHLRTransport, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok && urlErr.Timeout() {
			return hlr.Record{}, errors.Wrap(ErrHLRTimeout, err)
		}
		if ctx.Err() != nil {
			return hlr.Record{}, errors.Wrap(ErrHLRTimeout, ctx.Err())
		}
		return hlr.Record{}, errors.Wrap(ErrHLRTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return hlr.Record{}, errors.Wrap(ErrHLRTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return hlr.Record{}, errors.Wrap(ErrHLRTransport, fmt.Errorf("hlr provider returned status %d", resp.StatusCode))
	}

	var payload map[string]hlr.Record
	if err := json.Unmarshal(body, &payload); err != nil {
		return hlr.Record{}, errors.Wrap(ErrHLRTransport, err)
	}

	rec, ok := payload[msisdn]
	if !ok || (rec == hlr.Record{}) {
		return hlr.EmptyResponse(msisdn), nil
	}

	return rec, nil
}

func (r *Resolver) appendDetached(rec hlr.Record, latency time.Duration, cached bool, sourceIP string) {
	row, err := store.RowFromRecord(rec, latency, cached, sourceIP)
	if err != nil {
		r.logger.Warn("hlr lookup row encode failed", "msisdn", rec.Number, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.Append(ctx, row); err != nil {
		r.logger.Warn("hlr lookup append failed", "msisdn", rec.Number, "error", err)
	}
}
