package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the watch loop, where kiln runs
// long enough for a scrape target to be useful.
type Metrics struct {
	config MetricsConfig

	deploysTotal  *prometheus.CounterVec
	deployLatency prometheus.Histogram
	testFailures  prometheus.Counter
	syncedFiles   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		// No-op instance; all record methods nil-check their collectors.
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "kiln"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		deploysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deploys_total",
				Help:      "Total number of deployments by final state",
			},
			[]string{"state"},
		),
		deployLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_duration_seconds",
				Help:      "Duration of deployment runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		testFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "test_failures_total",
				Help:      "Total number of failing smoke-test runs",
			},
		),
		syncedFiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synced_files_total",
				Help:      "Total number of files copied into the workspace by tree",
			},
			[]string{"tree"},
		),
	}

	registry.MustRegister(m.deploysTotal, m.deployLatency, m.testFailures, m.syncedFiles)

	return m
}

// RecordDeploy records a completed deployment run.
func (m *Metrics) RecordDeploy(state string, seconds float64) {
	if m.deploysTotal == nil {
		return
	}
	m.deploysTotal.WithLabelValues(state).Inc()
	m.deployLatency.Observe(seconds)
}

// RecordTestFailure records a smoke-test run with failing cases.
func (m *Metrics) RecordTestFailure() {
	if m.testFailures == nil {
		return
	}
	m.testFailures.Inc()
}

// RecordSyncedFiles records files copied into a workspace tree.
func (m *Metrics) RecordSyncedFiles(tree string, n int) {
	if m.syncedFiles == nil {
		return
	}
	m.syncedFiles.WithLabelValues(tree).Add(float64(n))
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics endpoint on listen until ctx is cancelled, then
// shuts the server down gracefully. Cancellation is a clean stop, not an
// error.
func (m *Metrics) Serve(ctx context.Context, listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: listen, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
