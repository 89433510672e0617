// Copyright 2025 Blockscout
//
// Package metrics holds lock-free atomic counters for the fetcher and
// verification coordinator and mirrors them into Prometheus
// gauges/counters via promauto. No HTTP server is started here; the
// host binary decides how to expose the default registry.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StreamMetrics is one Dual-Stream Fetcher's counters: the current
// cursor heights and error/retry tallies, read with atomic loads so
// the fetcher's goroutines never take a lock to report progress.
type StreamMetrics struct {
	name string

	catchupCursor  atomic.Uint64
	realtimeCursor atomic.Uint64
	recordsFetched atomic.Uint64
	fetchErrors    atomic.Uint64
	retriesExhausted atomic.Uint64

	catchupGauge  prometheus.Gauge
	realtimeGauge prometheus.Gauge
	fetchedTotal  prometheus.Counter
	errorsTotal   prometheus.Counter
	exhaustedTotal prometheus.Counter
}

// NewStreamMetrics registers (or reuses, via promauto's default
// registry) one gauge/counter family per stream name.
func NewStreamMetrics(namespace, streamName string) *StreamMetrics {
	labels := prometheus.Labels{"stream": streamName}
	m := &StreamMetrics{name: streamName}
	m.catchupGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "catchup_cursor",
		Help:        "Highest block/height processed by the catch-up producer",
		ConstLabels: labels,
	})
	m.realtimeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "realtime_cursor",
		Help:        "Highest block/height processed by the realtime producer",
		ConstLabels: labels,
	})
	m.fetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "records_fetched_total",
		Help:        "Total raw records emitted by the fetcher",
		ConstLabels: labels,
	})
	m.errorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "fetch_errors_total",
		Help:        "Total fetch attempts that returned an error",
		ConstLabels: labels,
	})
	m.exhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "retries_exhausted_total",
		Help:        "Total ranges abandoned after exhausting retry attempts",
		ConstLabels: labels,
	})
	return m
}

func (m *StreamMetrics) SetCatchupCursor(v uint64) {
	m.catchupCursor.Store(v)
	m.catchupGauge.Set(float64(v))
}

func (m *StreamMetrics) SetRealtimeCursor(v uint64) {
	m.realtimeCursor.Store(v)
	m.realtimeGauge.Set(float64(v))
}

func (m *StreamMetrics) AddRecordsFetched(n uint64) {
	m.recordsFetched.Add(n)
	m.fetchedTotal.Add(float64(n))
}

func (m *StreamMetrics) IncFetchErrors() {
	m.fetchErrors.Add(1)
	m.errorsTotal.Inc()
}

func (m *StreamMetrics) IncRetriesExhausted() {
	m.retriesExhausted.Add(1)
	m.exhaustedTotal.Inc()
}

// CatchupCursor returns the last reported catch-up cursor height.
func (m *StreamMetrics) CatchupCursor() uint64 { return m.catchupCursor.Load() }

// RealtimeCursor returns the last reported realtime cursor height.
func (m *StreamMetrics) RealtimeCursor() uint64 { return m.realtimeCursor.Load() }

// RecordsFetched returns the running total of emitted records.
func (m *StreamMetrics) RecordsFetched() uint64 { return m.recordsFetched.Load() }

// VerificationMetrics counts coordinator outcomes.
type VerificationMetrics struct {
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
	fullMatches atomic.Uint64
	partialMatches atomic.Uint64
	noMatches   atomic.Uint64

	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	matchesTotal     *prometheus.CounterVec
}

func NewVerificationMetrics(namespace string) *VerificationMetrics {
	return &VerificationMetrics{
		cacheHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "verification_cache_hits_total", Help: "Verification requests resolved from cache",
		}),
		cacheMissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "verification_cache_misses_total", Help: "Verification requests that required compilation",
		}),
		matchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "verification_matches_total", Help: "Verification outcomes by match type",
		}, []string{"match_type"}),
	}
}

func (m *VerificationMetrics) IncCacheHit() {
	m.cacheHits.Add(1)
	m.cacheHitsTotal.Inc()
}

func (m *VerificationMetrics) IncCacheMiss() {
	m.cacheMisses.Add(1)
	m.cacheMissesTotal.Inc()
}

func (m *VerificationMetrics) IncMatch(matchType string) {
	switch matchType {
	case "full":
		m.fullMatches.Add(1)
	case "partial":
		m.partialMatches.Add(1)
	default:
		m.noMatches.Add(1)
	}
	m.matchesTotal.WithLabelValues(matchType).Inc()
}

func (m *VerificationMetrics) CacheHits() uint64 { return m.cacheHits.Load() }
func (m *VerificationMetrics) CacheMisses() uint64 { return m.cacheMisses.Load() }
