// Package metrics provides Prometheus metrics for the battle oracle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// OracleMetrics collects detection, market and settlement metrics. A nil
// *OracleMetrics is valid and records nothing.
type OracleMetrics struct {
	registry *prometheus.Registry

	// Detection metrics
	DetectionsTotal *prometheus.CounterVec
	DecisionsTotal  *prometheus.CounterVec

	// Market metrics
	MarketsCreated   prometheus.Counter
	MarketLiquidity  prometheus.Counter
	ProposalsTotal   *prometheus.CounterVec
	SettlementsTotal *prometheus.CounterVec

	// Monitor metrics
	CycleDuration *prometheus.HistogramVec
	StreamsSeen   prometheus.Gauge
	EndedSessions prometheus.Gauge
	CycleFailures *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the collector set on its own registry.
func New(namespace string) *OracleMetrics {
	if namespace == "" {
		namespace = "battleoracle"
	}
	registry := prometheus.NewRegistry()

	m := &OracleMetrics{
		registry: registry,

		DetectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detections_total",
				Help:      "Battle detections by pattern and source (detect or resolve)",
			},
			[]string{"source", "pattern"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Policy decisions taken on detections",
			},
			[]string{"decision"},
		),

		MarketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markets_created_total",
			Help:      "Markets created from detected battles",
		}),
		MarketLiquidity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_liquidity_seeded_total",
			Help:      "Initial liquidity seeded into created markets",
		}),
		ProposalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlement_proposals_total",
				Help:      "Settlement proposals by status tag",
			},
			[]string{"status"},
		),
		SettlementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlements_total",
				Help:      "Applied settlement actions by kind and result",
			},
			[]string{"kind", "result"},
		),

		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "monitor_cycle_duration_seconds",
				Help:      "Duration of one monitoring cycle",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"result"},
		),
		StreamsSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_streams_seen",
			Help:      "Live streams returned by the last cycle",
		}),
		EndedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_ended_sessions_last_cycle",
			Help:      "Sessions marked offline by the last cycle",
		}),
		CycleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monitor_item_failures_total",
				Help:      "Per-item failures inside monitoring cycles",
			},
			[]string{"step"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	m.registerAll()
	return m
}

func (m *OracleMetrics) registerAll() {
	m.registry.MustRegister(
		m.DetectionsTotal,
		m.DecisionsTotal,
		m.MarketsCreated,
		m.MarketLiquidity,
		m.ProposalsTotal,
		m.SettlementsTotal,
		m.CycleDuration,
		m.StreamsSeen,
		m.EndedSessions,
		m.CycleFailures,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry returns the underlying registry.
func (m *OracleMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *OracleMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDetection counts a detection made by source ("detect" or "resolve").
func (m *OracleMetrics) RecordDetection(source, pattern string) {
	if m == nil {
		return
	}
	m.DetectionsTotal.WithLabelValues(source, pattern).Inc()
}

// RecordDecision counts a policy outcome, e.g. "create_market" or "ignore".
func (m *OracleMetrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordMarketCreated counts a new market and its seeded liquidity.
func (m *OracleMetrics) RecordMarketCreated(liquidity decimal.Decimal) {
	if m == nil {
		return
	}
	m.MarketsCreated.Inc()
	if liquidity.IsPositive() {
		m.MarketLiquidity.Add(liquidity.InexactFloat64())
	}
}

// RecordProposal counts a settlement proposal by its status tag.
func (m *OracleMetrics) RecordProposal(status string) {
	if m == nil {
		return
	}
	m.ProposalsTotal.WithLabelValues(status).Inc()
}

// RecordSettlement counts an applied settlement ("auto", "approve", "reject").
func (m *OracleMetrics) RecordSettlement(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SettlementsTotal.WithLabelValues(kind, result).Inc()
}

// RecordCycle records a finished monitoring cycle.
func (m *OracleMetrics) RecordCycle(d time.Duration, streams, ended int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CycleDuration.WithLabelValues(result).Observe(d.Seconds())
	if err == nil {
		m.StreamsSeen.Set(float64(streams))
		m.EndedSessions.Set(float64(ended))
	}
}

// RecordFailure counts a per-item failure at the given step.
func (m *OracleMetrics) RecordFailure(step string) {
	if m == nil {
		return
	}
	m.CycleFailures.WithLabelValues(step).Inc()
}

// RecordHTTP records one served request.
func (m *OracleMetrics) RecordHTTP(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(d.Seconds())
}
