// Package metrics exposes synchronization metrics for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ersonp/history-map/internal/domain/ports"
)

const namespace = "histmap"

var syncStates = []string{"clean", "dirty", "syncing"}

// SyncMetrics implements ports.SyncObserver on its own registry.
type SyncMetrics struct {
	registry *prometheus.Registry

	state        *prometheus.GaugeVec
	syncs        *prometheus.CounterVec
	syncDuration prometheus.Histogram
	lastSuccess  prometheus.Gauge
	events       prometheus.Gauge
}

var _ ports.SyncObserver = (*SyncMetrics)(nil)

// NewSyncMetrics creates and registers the collectors.
func NewSyncMetrics() *SyncMetrics {
	m := &SyncMetrics{registry: prometheus.NewRegistry()}

	m.state = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_state",
		Help:      "1 for the current synchronization state, 0 otherwise",
	}, []string{"state"})
	m.syncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_writes_total",
		Help:      "Remote writes by outcome",
	}, []string{"status"})
	m.syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_write_duration_seconds",
		Help:      "Time spent writing the collection to the remote store",
		Buckets:   prometheus.DefBuckets,
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful remote write",
	})
	m.events = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events",
		Help:      "Number of events in the collection",
	})

	m.registry.MustRegister(m.state, m.syncs, m.syncDuration, m.lastSuccess, m.events)
	m.StateChanged("clean")
	return m
}

// StateChanged marks s as the only active state.
func (m *SyncMetrics) StateChanged(s string) {
	for _, known := range syncStates {
		v := 0.0
		if known == s {
			v = 1
		}
		m.state.WithLabelValues(known).Set(v)
	}
}

// SyncFinished records a write outcome.
func (m *SyncMetrics) SyncFinished(elapsed time.Duration, err error) {
	m.syncDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.syncs.WithLabelValues("error").Inc()
		return
	}
	m.syncs.WithLabelValues("success").Inc()
	m.lastSuccess.SetToCurrentTime()
}

// EventCount records the collection size.
func (m *SyncMetrics) EventCount(n int) {
	m.events.Set(float64(n))
}

// Handler serves /metrics and /healthz.
func (m *SyncMetrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Server runs the metrics endpoint until its context is canceled.
type Server struct {
	server *http.Server
}

// NewServer creates a server for m on addr.
func NewServer(addr string, m *SyncMetrics) *Server {
	return &Server{server: &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Serve blocks until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
