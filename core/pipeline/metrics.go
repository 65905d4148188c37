package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hlsladder/core/job"
	"hlsladder/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of a publishing run. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Jobs      *prometheus.CounterVec
	Failures  *prometheus.CounterVec
	Attempts  prometheus.Counter
	Segments  prometheus.Counter
	InFlight  prometheus.Gauge
	JobLength prometheus.Histogram
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hlsladder_jobs_total",
				Help: "Finished track jobs by result",
			},
			[]string{"result"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hlsladder_job_failures_total",
				Help: "Failed track jobs by failure kind",
			},
			[]string{"kind"},
		),
		Attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlsladder_job_attempts_total",
			Help: "Download/encode/upload attempts across all jobs",
		}),
		Segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hlsladder_segments_published_total",
			Help: "Segments uploaded across all tiers",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hlsladder_jobs_in_flight",
			Help: "Track jobs currently running",
		}),
		JobLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hlsladder_job_duration_seconds",
			Help:    "Wall time of finished track jobs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	collectors := []prometheus.Collector{m.Jobs, m.Failures, m.Attempts, m.Segments, m.InFlight, m.JobLength}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			logger.Error("Failed to register metric", logger.ErrorField(err))
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) jobStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

func (m *Metrics) observe(out job.Outcome) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.Attempts.Add(float64(out.Attempts))
	m.Segments.Add(float64(out.Segments))
	m.JobLength.Observe(out.Duration.Seconds())

	switch {
	case out.Err != nil:
		m.Jobs.WithLabelValues("failed").Inc()
		m.Failures.WithLabelValues(kindName(out.Err)).Inc()
	case out.Skipped:
		m.Jobs.WithLabelValues("skipped").Inc()
	default:
		m.Jobs.WithLabelValues("published").Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting metrics server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Metrics server stopped")
	return nil
}
