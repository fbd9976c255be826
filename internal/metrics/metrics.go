// Package metrics exposes evaluation progress as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vqlbench/internal/util"
)

// Metrics holds the collectors of one evaluation run. Each instance owns its
// registry so several runs can coexist in one process.
type Metrics struct {
	registry      *prometheus.Registry
	pairs         *prometheus.CounterVec
	querySeconds  *prometheus.HistogramVec
	adapterErrors *prometheus.CounterVec
	reward        prometheus.Histogram
	inflight      prometheus.Gauge
}

// New registers the evaluation collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vqlbench_pairs_completed_total",
			Help: "Query pairs evaluated, by outcome",
		}, []string{"outcome"}),
		querySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vqlbench_query_seconds",
			Help:    "Query execution time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"side"}),
		adapterErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vqlbench_adapter_errors_total",
			Help: "Failed query executions, by reason",
		}, []string{"reason"}),
		reward: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vqlbench_ves_reward",
			Help:    "Efficiency reward per evaluated pair",
			Buckets: []float64{0, 0.25, 0.5, 0.75, 1, 1.25},
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vqlbench_pairs_inflight",
			Help: "Query pairs currently being evaluated",
		}),
	}
	m.registry.MustRegister(
		m.pairs, m.querySeconds, m.adapterErrors, m.reward, m.inflight,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry backing this instance.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// PairDone records a finished pair. An empty outcome counts as "ok".
func (m *Metrics) PairDone(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.pairs.WithLabelValues(outcome).Inc()
}

// PairStarted increments the in-flight gauge.
func (m *Metrics) PairStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

// PairFinished decrements the in-flight gauge.
func (m *Metrics) PairFinished() {
	if m == nil {
		return
	}
	m.inflight.Dec()
}

// ObserveQuery records one execution duration.
func (m *Metrics) ObserveQuery(side string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.querySeconds.WithLabelValues(side).Observe(elapsed.Seconds())
}

// AdapterError counts one failed execution.
func (m *Metrics) AdapterError(reason string) {
	if m == nil {
		return
	}
	m.adapterErrors.WithLabelValues(reason).Inc()
}

// ObserveReward records one pair's efficiency reward.
func (m *Metrics) ObserveReward(reward float64) {
	if m == nil {
		return
	}
	m.reward.Observe(reward)
}

// Serve exposes /metrics on addr until ctx is done. An empty addr is a no-op.
func (m *Metrics) Serve(ctx context.Context, addr string) {
	if m == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			util.Warnf("metrics server shutdown: %v", err)
		}
	}()
	go func() {
		util.Infof("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Errorf("metrics server: %v", err)
		}
	}()
}
