// Package transport exposes the gateway's HTTP surface: a health probe and
// the Prometheus metrics endpoint. It carries no SMPP traffic.
package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smppgw/gateway/internal/health"
	"github.com/smppgw/gateway/internal/metrics"
)

// NewHandler builds the metrics/health router.
func NewHandler(m *metrics.Metrics, checker *health.Checker) http.Handler {
	mux := chi.NewRouter()

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := checker.Check(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", m.Handler())

	return mux
}
