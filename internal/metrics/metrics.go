package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metric names recorded by this service
const (
	IngestEventsAdded      = "ingest.events_added"
	IngestEventsDuplicate  = "ingest.events_duplicate"
	IngestEventsSkipped    = "ingest.events_skipped"
	IngestTicksCompleted   = "ingest.ticks_completed"
	IngestTicksFailed      = "ingest.ticks_failed"
	AuthLoginsCompleted    = "auth.logins_completed"
	AuthLoginsFailed       = "auth.logins_failed"
	AuthTokensRefreshed    = "auth.tokens_refreshed"
	AuthTokensRejected     = "auth.tokens_rejected"
	FavoritesSaved         = "favorites.saved"
	FavoritesDuplicate     = "favorites.duplicate"
	EventsListCacheHits    = "events.list_cache_hits"
	EventsListCacheMisses  = "events.list_cache_misses"
)

// Metrics is a process-local metrics collector
type Metrics struct {
	mu           sync.RWMutex
	counters     map[string]*int64
	gauges       map[string]*int64
	healthChecks map[string]*int64
	startTime    time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:     make(map[string]*int64),
		gauges:       make(map[string]*int64),
		healthChecks: make(map[string]*int64),
		startTime:    time.Now(),
	}
}

// counter returns the counter cell for a name, creating it if needed
func (m *Metrics) counter(name string) *int64 {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[name]; ok {
		return c
	}
	c = new(int64)
	m.counters[name] = c
	return c
}

// IncrementCounter increments a counter by one
func (m *Metrics) IncrementCounter(name string) {
	atomic.AddInt64(m.counter(name), 1)
}

// AddToCounter adds a delta to a counter
func (m *Metrics) AddToCounter(name string, delta int64) {
	atomic.AddInt64(m.counter(name), delta)
}

// GetCounter returns the current value of a counter
func (m *Metrics) GetCounter(name string) int64 {
	return atomic.LoadInt64(m.counter(name))
}

// SetGauge sets a point-in-time value
func (m *Metrics) SetGauge(name string, value int64) {
	m.mu.Lock()
	g, ok := m.gauges[name]
	if !ok {
		g = new(int64)
		m.gauges[name] = g
	}
	m.mu.Unlock()
	atomic.StoreInt64(g, value)
}

// SetHealthCheck records a named health status
func (m *Metrics) SetHealthCheck(name string, healthy bool) {
	m.mu.Lock()
	h, ok := m.healthChecks[name]
	if !ok {
		h = new(int64)
		m.healthChecks[name] = h
	}
	m.mu.Unlock()

	var v int64
	if healthy {
		v = 1
	}
	atomic.StoreInt64(h, v)
}

// GetHealthChecks returns all health statuses
func (m *Metrics) GetHealthChecks() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]bool, len(m.healthChecks))
	for name, h := range m.healthChecks {
		out[name] = atomic.LoadInt64(h) == 1
	}
	return out
}

// GetAllMetrics returns a snapshot of every recorded metric
func (m *Metrics) GetAllMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, c := range m.counters {
		counters[name] = atomic.LoadInt64(c)
	}

	gauges := make(map[string]int64, len(m.gauges))
	for name, g := range m.gauges {
		gauges[name] = atomic.LoadInt64(g)
	}

	return map[string]interface{}{
		"counters":       counters,
		"gauges":         gauges,
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
	}
}
