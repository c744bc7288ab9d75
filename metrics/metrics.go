// Package metrics exposes cache and admin HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/decorstore/cachekit/cache"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of one process. Each Collector owns its
// registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheErrors  *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

var _ cache.Metrics = (*Collector)(nil)

// NewCollector creates the metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of distributed cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of distributed cache misses",
		}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Distributed cache operations that failed and returned a safe default",
		}, []string{"op"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of admin HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.registry.MustRegister(
		c.CacheHits,
		c.CacheMisses,
		c.CacheErrors,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Hit()            { c.CacheHits.Inc() }
func (c *Collector) Miss()           { c.CacheMisses.Inc() }
func (c *Collector) Error(op string) { c.CacheErrors.WithLabelValues(op).Inc() }

// WatchLocal exports the local cache statistics as gauges read on every scrape.
func (c *Collector) WatchLocal(namespace string, local *cache.Local) {
	stat := func(name, help string, fn func(cache.Statistics) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "local",
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(local.Statistics()) })
	}
	c.registry.MustRegister(
		stat("keys", "Entries in the local cache", func(s cache.Statistics) float64 { return float64(s.TotalKeys) }),
		stat("hit_ratio_percent", "Local cache hit ratio", func(s cache.Statistics) float64 { return s.HitRatio }),
		stat("requests", "Local cache lookups since start", func(s cache.Statistics) float64 { return float64(s.TotalRequests) }),
	)
}

// WatchConnector exports the redis circuit breaker state: 0 closed, 1 half-open,
// 2 open.
func (c *Collector) WatchConnector(namespace string, conn *cache.Connector) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "redis_breaker_state",
		Help:      "Redis circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, func() float64 {
		switch conn.State() {
		case "half-open":
			return 1
		case "open":
			return 2
		}
		return 0
	}))
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request counts and durations labelled by the chi route
// pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(started).Seconds())
	})
}
