// Package metrics exposes the rate limiter's Prometheus counters and an
// HTTP handler to scrape them, grounded on the gateway-controller metrics
// server pattern in the retrieval pack: a private registry plus a
// promhttp.Handler, rather than the global default registry.
package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxDeniedKeys bounds how many distinct denied keys are tracked at
// once, mirroring the denied-keys cap in the original implementation's
// metrics builder.
const DefaultMaxDeniedKeys = 100

// Metrics holds the counters and gauges common to every transport (C7).
type Metrics struct {
	registry       *prometheus.Registry
	DecisionsTotal *prometheus.CounterVec
	StoreEntries   prometheus.Gauge
	SweepTotal     *prometheus.CounterVec

	deniedKeys *deniedKeyTracker
}

// New constructs and registers a fresh set of metrics against a private
// registry.
func New() *Metrics {
	return NewWithMaxDeniedKeys(DefaultMaxDeniedKeys)
}

// NewWithMaxDeniedKeys is New with an explicit cap on the number of
// distinct denied keys tracked for the top-denied-keys export.
func NewWithMaxDeniedKeys(maxDeniedKeys int) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimitd_decisions_total",
			Help: "Total number of throttle decisions, by outcome.",
		}, []string{"allowed"}),
		StoreEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ratelimitd_store_entries",
			Help: "Approximate number of live keys in the store.",
		}),
		SweepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimitd_sweep_total",
			Help: "Total number of eviction sweeps performed, by store policy.",
		}, []string{"policy"}),
		deniedKeys: newDeniedKeyTracker(maxDeniedKeys),
	}

	reg.MustRegister(m.DecisionsTotal, m.StoreEntries, m.SweepTotal, m.deniedKeys)
	return m
}

// RecordDecision increments the decision counter for the given outcome.
func (m *Metrics) RecordDecision(allowed bool) {
	if allowed {
		m.DecisionsTotal.WithLabelValues("true").Inc()
	} else {
		m.DecisionsTotal.WithLabelValues("false").Inc()
	}
}

// RecordDecisionForKey is RecordDecision plus per-key denial tracking for
// the top-denied-keys export; allowed requests don't occupy a tracked slot.
func (m *Metrics) RecordDecisionForKey(allowed bool, key string) {
	m.RecordDecision(allowed)
	if !allowed {
		m.deniedKeys.record(key)
	}
}

// Handler returns the HTTP handler that serves this registry's metrics in
// the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// deniedKeyTracker is a bounded, rank-exported collector for the
// distinct keys seen in denied throttle decisions. New keys beyond the
// cap are dropped rather than evicting an already-tracked key, matching
// the original implementation's fixed-capacity denied-key table.
type deniedKeyTracker struct {
	mu     sync.Mutex
	max    int
	counts map[string]uint64
	desc   *prometheus.Desc
}

func newDeniedKeyTracker(max int) *deniedKeyTracker {
	if max <= 0 {
		max = DefaultMaxDeniedKeys
	}
	return &deniedKeyTracker{
		max:    max,
		counts: make(map[string]uint64),
		desc: prometheus.NewDesc(
			"ratelimitd_top_denied_keys",
			"Denial count for the most frequently denied keys, ranked descending.",
			[]string{"key", "rank"}, nil,
		),
	}
}

func (t *deniedKeyTracker) record(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.counts[key]; !ok && len(t.counts) >= t.max {
		return
	}
	t.counts[key]++
}

// Describe satisfies prometheus.Collector.
func (t *deniedKeyTracker) Describe(ch chan<- *prometheus.Desc) {
	ch <- t.desc
}

// Collect satisfies prometheus.Collector, emitting one ranked gauge sample
// per tracked key, highest denial count first.
func (t *deniedKeyTracker) Collect(ch chan<- prometheus.Metric) {
	t.mu.Lock()
	type entry struct {
		key   string
		count uint64
	}
	entries := make([]entry, 0, len(t.counts))
	for k, c := range t.counts {
		entries = append(entries, entry{key: k, count: c})
	}
	t.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})

	for i, e := range entries {
		ch <- prometheus.MustNewConstMetric(
			t.desc, prometheus.GaugeValue, float64(e.count),
			e.key, strconv.Itoa(i+1),
		)
	}
}
