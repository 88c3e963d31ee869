// Package metrics exposes devserve's Prometheus metrics. Each server owns a
// private registry so that several instances can coexist in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/conneroisu/devserve/internal/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "devserve"

// CacheSource supplies cache counters.
type CacheSource interface {
	Stats() cache.Stats
}

// ClientSource supplies the reload hub counters.
type ClientSource interface {
	Clients() int
	Broadcasts() int64
	Dropped() int64
}

// Metrics holds the server's collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	transformDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New(cacheSrc CacheSource, clients ClientSource) (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served, by result kind",
		}, []string{"result"}),

		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "duration_seconds",
			Help:      "Time spent producing content on cache misses",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"kind"}),
	}

	stat := func(f func(cache.Stats) float64) func() float64 {
		return func() float64 { return f(cacheSrc.Stats()) }
	}

	collectorsToRegister := []prometheus.Collector{
		m.requests,
		m.transformDuration,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Cache lookups served from a stored entry",
		}, stat(func(s cache.Stats) float64 { return float64(s.Hits) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Cache lookups that required a compute",
		}, stat(func(s cache.Stats) float64 { return float64(s.Misses) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "invalidations_total",
			Help: "Entries removed by invalidation or clear",
		}, stat(func(s cache.Stats) float64 { return float64(s.Invalidations) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "entries",
			Help: "Entries currently cached",
		}, stat(func(s cache.Stats) float64 { return float64(s.Entries) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "reload", Name: "clients",
			Help: "Connected reload clients",
		}, func() float64 { return float64(clients.Clients()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reload", Name: "broadcasts_total",
			Help: "Reload notifications broadcast",
		}, func() float64 { return float64(clients.Broadcasts()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reload", Name: "dropped_total",
			Help: "Per-client notifications dropped on a full queue",
		}, func() float64 { return float64(clients.Dropped()) }),
		collectors.NewGoCollector(),
	}

	for _, c := range collectorsToRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRequest counts one request with its result kind.
func (m *Metrics) ObserveRequest(result string) {
	m.requests.WithLabelValues(result).Inc()
}

// ObserveTransform records how long producing content of kind took.
func (m *Metrics) ObserveTransform(kind string, d time.Duration) {
	m.transformDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
