// Package metrics exposes a running sweep as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shivanshkc/tokbench/pkg/bench"
)

const namespace = "tokbench"

// OutcomeSuccess labels successful requests. Failures are labelled with their bench.ErrorKind.
const OutcomeSuccess = "success"

// Recorder records sweep progress into its own registry.
//
// It implements bench.Observer.
type Recorder struct {
	registry *prometheus.Registry

	// Requests counts finished requests by concurrency and outcome.
	Requests *prometheus.CounterVec
	// Tokens counts generated tokens by concurrency.
	Tokens *prometheus.CounterVec
	// SkippedFrames counts malformed frames by concurrency.
	SkippedFrames *prometheus.CounterVec

	TTFT    *prometheus.HistogramVec
	ITL     *prometheus.HistogramVec
	Latency *prometheus.HistogramVec

	// Concurrency is the level currently being measured.
	Concurrency prometheus.Gauge
	SystemTPS   *prometheus.GaugeVec
	SystemQPS   *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	levelLabel := []string{"concurrency"}

	return &Recorder{
		registry: registry,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Finished benchmark requests by concurrency level and outcome",
		}, []string{"concurrency", "outcome"}),
		Tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Generated tokens by concurrency level",
		}, levelLabel),
		SkippedFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_frames_total",
			Help:      "Malformed stream frames skipped by concurrency level",
		}, levelLabel),
		TTFT: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ttft_seconds",
			Help:      "Time to first token of successful requests",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~82s
		}, levelLabel),
		ITL: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "itl_seconds",
			Help:      "Mean inter-token latency of successful requests",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		}, levelLabel),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "End-to-end latency of successful requests",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~14min
		}, levelLabel),
		Concurrency: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "concurrency",
			Help:      "Concurrency level currently being measured",
		}),
		SystemTPS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_tokens_per_second",
			Help:      "Generated tokens per second of wall time for a finished level",
		}, levelLabel),
		SystemQPS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_requests_per_second",
			Help:      "Successful requests per second of wall time for a finished level",
		}, levelLabel),
	}
}

// Registry returns the registry the Recorder writes to.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// LevelStarted implements bench.Observer.
func (r *Recorder) LevelStarted(concurrency, _ int) {
	r.Concurrency.Set(float64(concurrency))
}

// RequestFinished implements bench.Observer.
func (r *Recorder) RequestFinished(concurrency int, result bench.RequestResult) {
	level := strconv.Itoa(concurrency)

	if !result.Success {
		r.Requests.WithLabelValues(level, string(result.ErrorKind)).Inc()
		return
	}

	r.Requests.WithLabelValues(level, OutcomeSuccess).Inc()
	r.Tokens.WithLabelValues(level).Add(float64(result.TokenCount))
	r.SkippedFrames.WithLabelValues(level).Add(float64(result.SkippedFrames))
	r.Latency.WithLabelValues(level).Observe(result.Latency.Seconds())

	// Without tokens, TTFT and ITL are not measurements.
	if result.TokenCount > 0 {
		r.TTFT.WithLabelValues(level).Observe(result.TTFT.Seconds())
	}
	if result.TokenCount > 1 {
		r.ITL.WithLabelValues(level).Observe(result.ITL.Seconds())
	}
}

// LevelFinished implements bench.Observer.
func (r *Recorder) LevelFinished(report bench.LevelReport) {
	level := strconv.Itoa(report.Concurrency)
	r.SystemTPS.WithLabelValues(level).Set(report.SystemTPS)
	r.SystemQPS.WithLabelValues(level).Set(report.SystemQPS)
}

// Handler serves the Recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes the Recorder on addr under /metrics until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errServe := make(chan error, 1)
	go func() { errServe <- server.ListenAndServe() }()
	logger.Info("serving metrics", "addr", addr)

	select {
	case err := <-errServe:
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	return nil
}
