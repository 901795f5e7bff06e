// Package metrics defines the Prometheus collectors the gateway exposes
// and registers them against a private registry so tests can spin up
// independent instances without colliding on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the gateway updates.
type Metrics struct {
	registry *prometheus.Registry

	SubmitTotal      *prometheus.CounterVec
	HLRRequestsTotal *prometheus.CounterVec
	HLRCacheHits     prometheus.Counter
	HLRCacheMisses   prometheus.Counter
	DelivrdTotal     *prometheus.CounterVec

	HLRLatencySeconds       prometheus.Histogram
	SubmitProcessingSeconds prometheus.Histogram

	ActiveSMPPConnections  prometheus.Gauge
	ActiveTasks            prometheus.Gauge
	RedisConnectionPoolSize prometheus.Gauge
}

// New builds and registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		SubmitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submit_total",
			Help: "SubmitSM PDUs processed, by outcome status.",
		}, []string{"status"}),
		HLRRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlr_requests_total",
			Help: "HLR provider requests issued, by result.",
		}, []string{"result"}),
		HLRCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlr_cache_hits_total",
			Help: "HLR lookups served from cache.",
		}),
		HLRCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlr_cache_misses_total",
			Help: "HLR lookups that missed the cache.",
		}),
		DelivrdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivrd_total",
			Help: "DELIVRD delivery receipts emitted, by reason.",
		}, []string{"reason"}),
		HLRLatencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlr_latency_seconds",
			Help:    "Latency of HLR provider requests.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		}),
		SubmitProcessingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "submit_processing_seconds",
			Help:    "Time to process a SubmitSM end to end.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		}),
		ActiveSMPPConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_smpp_connections",
			Help: "SMPP sessions currently bound or open.",
		}),
		ActiveTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_tasks",
			Help: "Pending DLR dispatch tasks.",
		}),
		RedisConnectionPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "redis_connection_pool_size",
			Help: "Configured size of the cache connection pool.",
		}),
	}

	reg.MustRegister(
		m.SubmitTotal,
		m.HLRRequestsTotal,
		m.HLRCacheHits,
		m.HLRCacheMisses,
		m.DelivrdTotal,
		m.HLRLatencySeconds,
		m.SubmitProcessingSeconds,
		m.ActiveSMPPConnections,
		m.ActiveTasks,
		m.RedisConnectionPoolSize,
	)

	return m
}

// Handler exposes the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
