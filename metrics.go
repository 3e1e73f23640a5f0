package goGuard

import (
	"slices"
	"sync/atomic"
	"time"
)

// MetricID indexes an engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginInvalidInput
	MetricTwoFactorRequired
	MetricTwoFactorInvalid
	MetricSessionIssued
	MetricLogout
	MetricUnauthorized
	MetricTenantScopeViolation
	MetricConfigurationError
	MetricPasswordChanged
	MetricAdminChange
	MetricTenantOverride
	MetricRateLimiterError
	MetricMailFailure
	// MetricAuthorizeLatency is the only histogram.
	MetricAuthorizeLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the Authorize latency
// buckets. Password hashing dominates login, hence the spread. A final
// overflow bucket follows the last bound.
var latencyBounds = []time.Duration{
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

const histBucketCount = 8

// counterSlot sits alone on a cache line so hot counters do not contend.
type counterSlot struct {
	atomic.Uint64
	_ [56]byte
}

type latencyHistogram struct {
	buckets [histBucketCount]atomic.Uint64
	sumNano atomic.Int64
}

// Metrics is a fixed set of lock-free counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	enabled bool
	slots   [metricIDCount]counterSlot
	latency latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histograms holds
// per-bucket (not cumulative) counts; Sums holds each histogram's total in
// seconds.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	Sums       map[MetricID]float64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricAuthorizeLatency {
		return
	}
	m.slots[id].Add(1)
}

// Observe records d for id. Only MetricAuthorizeLatency is a histogram;
// other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.Enabled() || id != MetricAuthorizeLatency {
		return
	}
	m.latency.buckets[latencyBucket(d)].Add(1)
	m.latency.sumNano.Add(int64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.slots[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
		Sums:       map[MetricID]float64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < MetricAuthorizeLatency; id++ {
		s.Counters[id] = m.slots[id].Load()
	}
	buckets := make([]uint64, histBucketCount)
	for i := range buckets {
		buckets[i] = m.latency.buckets[i].Load()
	}
	s.Histograms[MetricAuthorizeLatency] = buckets
	s.Sums[MetricAuthorizeLatency] = time.Duration(m.latency.sumNano.Load()).Seconds()
	return s
}

// latencyBucket returns the first bucket whose bound holds d, compared at
// millisecond precision.
func latencyBucket(d time.Duration) int {
	d = d.Truncate(time.Millisecond)
	if i := slices.IndexFunc(latencyBounds, func(b time.Duration) bool { return d <= b }); i >= 0 {
		return i
	}
	return len(latencyBounds)
}
