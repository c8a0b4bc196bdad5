// Package metrics exposes scan counters for Prometheus scraping
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the scan counters. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry

	probesTotal      *prometheus.CounterVec
	requestsTotal    prometheus.Counter
	findingsTotal    *prometheus.CounterVec
	probeErrorsTotal prometheus.Counter
}

// New creates a recorder with its own registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "typeconfusion_probes_total",
				Help: "Insertion points probed, by insertion point kind",
			},
			[]string{"kind"},
		),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "typeconfusion_requests_total",
			Help: "HTTP requests sent to targets",
		}),
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "typeconfusion_findings_total",
				Help: "Type confusion findings reported, by title",
			},
			[]string{"title"},
		),
		probeErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "typeconfusion_probe_errors_total",
			Help: "Probes aborted by an error",
		}),
	}

	r.registry.MustRegister(r.probesTotal, r.requestsTotal, r.findingsTotal, r.probeErrorsTotal)
	return r
}

// Registry returns the registry the counters are registered with
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ProbeStarted counts one probe of the given insertion point kind
func (r *Recorder) ProbeStarted(kind string) {
	if r == nil {
		return
	}
	r.probesTotal.WithLabelValues(kind).Inc()
}

// RequestSent counts one request sent
func (r *Recorder) RequestSent() {
	if r == nil {
		return
	}
	r.requestsTotal.Inc()
}

// FindingReported counts one finding
func (r *Recorder) FindingReported(title string) {
	if r == nil {
		return
	}
	r.findingsTotal.WithLabelValues(title).Inc()
}

// ProbeFailed counts one probe that failed open
func (r *Recorder) ProbeFailed() {
	if r == nil {
		return
	}
	r.probeErrorsTotal.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve listens on addr and serves /metrics until ctx is done. The returned
// address is the one actually bound, which matters when addr uses port 0.
func (r *Recorder) Serve(ctx context.Context, addr string) (string, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	return ln.Addr().String(), errc, nil
}
