// Package metric provides Prometheus metrics for tokbroker.
package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokbroker"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Token acquisition
	TokenRequests *prometheus.CounterVec
	SignIns       *prometheus.CounterVec
	SignOuts      *prometheus.CounterVec

	// Endpoint discovery
	Resolves *prometheus.CounterVec

	// Coordination
	CacheReads    *prometheus.CounterVec
	LockWait      *prometheus.HistogramVec
	LockConflicts *prometheus.CounterVec
}

// NewRegistry creates a registry with Go runtime and process collectors
// plus all tokbroker metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		TokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_requests_total",
			Help:      "Token requests by the source that satisfied them (cache, recheck, signin, error).",
		}, []string{"source"}),
		SignIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signins_total",
			Help:      "Remote sign-in calls by result.",
		}, []string{"result"}),
		SignOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signouts_total",
			Help:      "Remote sign-out calls by result.",
		}, []string{"result"}),
		Resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolves_total",
			Help:      "Endpoint resolutions by the source that satisfied them.",
		}, []string{"result"}),
		CacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_reads_total",
			Help:      "Credential store reads by value kind and result (hit, miss, error).",
		}, []string{"kind", "result"}),
		LockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting to acquire a coordination lock.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"kind"}),
		LockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_conflicts_total",
			Help:      "Lock acquisitions that timed out.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		r.TokenRequests,
		r.SignIns,
		r.SignOuts,
		r.Resolves,
		r.CacheReads,
		r.LockWait,
		r.LockConflicts,
	)

	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Registerer exposes the underlying registry to components that own
// their collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for tests and custom exposition.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordTokenRequest counts a token request satisfied from source.
func (r *Registry) RecordTokenRequest(source string) {
	if r == nil {
		return
	}
	r.TokenRequests.WithLabelValues(source).Inc()
}

// RecordSignIn counts a remote sign-in by result.
func (r *Registry) RecordSignIn(result string) {
	if r == nil {
		return
	}
	r.SignIns.WithLabelValues(result).Inc()
}

// RecordSignOut counts a remote sign-out by result.
func (r *Registry) RecordSignOut(result string) {
	if r == nil {
		return
	}
	r.SignOuts.WithLabelValues(result).Inc()
}

// RecordResolve counts an endpoint resolution by result.
func (r *Registry) RecordResolve(result string) {
	if r == nil {
		return
	}
	r.Resolves.WithLabelValues(result).Inc()
}

// RecordCacheRead counts a credential store read.
func (r *Registry) RecordCacheRead(kind, result string) {
	if r == nil {
		return
	}
	r.CacheReads.WithLabelValues(kind, result).Inc()
}

// ObserveLockWait records how long a lock acquisition took.
func (r *Registry) ObserveLockWait(kind string, d time.Duration) {
	if r == nil {
		return
	}
	r.LockWait.WithLabelValues(kind).Observe(d.Seconds())
}

// IncLockConflict counts a lock acquisition that timed out.
func (r *Registry) IncLockConflict(kind string) {
	if r == nil {
		return
	}
	r.LockConflicts.WithLabelValues(kind).Inc()
}
