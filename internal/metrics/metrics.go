// Package metrics provides lock-free counters and a fixed-bucket
// latency histogram for the identity engine. Counters live in
// cache-line-padded slots and are incremented atomically; the write
// path performs no allocation and no I/O. Export (Prometheus, OTel)
// lives under metrics/export and reads point-in-time snapshots.
package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricMFAChallengeIssued
	MetricMFASuccess
	MetricMFAFailure
	MetricMFAReplayAttempt
	MetricMFAEnrolled
	MetricMFADisabled
	MetricBackupCodeUsed
	MetricBackupCodeFailed
	MetricBackupCodeRegenerated
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricTokenReuseDetected
	MetricSessionCreated
	MetricSessionRevoked
	MetricLogout
	MetricLogoutAll
	MetricPasswordResetRequested
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricCredentialRotated
	MetricVerifyLatency

	MetricIDCount
)

// NumBuckets is the fixed histogram bucket count.
const NumBuckets = 8

// BucketBounds are the histogram upper bounds; the last bucket is +Inf.
var BucketBounds = [NumBuckets - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	1 * time.Second,
}

// histogramIDs lists the metrics recorded as histograms rather than
// counters.
var histogramIDs = []MetricID{MetricVerifyLatency}

type paddedCounter struct {
	value atomic.Uint64
	_     [56]byte
}

type histogram struct {
	buckets [NumBuckets]paddedCounter
}

func (h *histogram) observe(d time.Duration) {
	for i, bound := range BucketBounds {
		if d <= bound {
			h.buckets[i].value.Add(1)
			return
		}
	}
	h.buckets[NumBuckets-1].value.Add(1)
}

// Config controls which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics is the engine-wide metric registry. A nil or disabled
// Metrics turns every operation into a no-op.
type Metrics struct {
	enabled       bool
	latencyActive bool
	counters      [MetricIDCount]paddedCounter
	histograms    map[MetricID]*histogram
}

// New creates a Metrics registry for the configured families.
func New(cfg Config) *Metrics {
	m := &Metrics{
		enabled:       cfg.Enabled,
		latencyActive: cfg.Enabled && cfg.EnableLatency,
		histograms:    make(map[MetricID]*histogram, len(histogramIDs)),
	}
	for _, id := range histogramIDs {
		m.histograms[id] = &histogram{}
	}
	return m
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	m.counters[id].value.Add(1)
}

// Observe records a latency sample into the histogram for id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.latencyActive {
		return
	}
	if h, ok := m.histograms[id]; ok {
		h.observe(d)
	}
}

// LatencyEnabled reports whether latency histograms are being recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latencyActive
}

// Snapshot is a point-in-time deep copy of all metric values.
// Histogram bucket counts are non-cumulative.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// Snapshot copies every counter and histogram bucket atomically per
// slot. Slots are read independently, so a snapshot taken during
// concurrent writes is internally consistent per metric, not across
// metrics, which is sufficient for scraping.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:   make(map[MetricID]uint64, MetricIDCount),
		Histograms: make(map[MetricID][]uint64, len(histogramIDs)),
	}
	if m == nil || !m.enabled {
		return snap
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		if _, isHist := m.histograms[id]; isHist {
			continue
		}
		snap.Counters[id] = m.counters[id].value.Load()
	}
	for id, h := range m.histograms {
		buckets := make([]uint64, NumBuckets)
		for i := range h.buckets {
			buckets[i] = h.buckets[i].value.Load()
		}
		snap.Histograms[id] = buckets
	}
	return snap
}
