package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ThrottleStats exposes the factory admission gate
type ThrottleStats interface {
	InFlight() int
	Waiting() int
	Peak() int
}

// CacheStats reports cumulative hits and misses
type CacheStats func() (hits, misses int64)

// PullMetrics serves point-in-time gauges for Prometheus scraping
type PullMetrics struct {
	registry   *prometheus.Registry
	imageCache *prometheus.CounterVec
}

// NewPullMetrics registers the gauges. throttle and design may be nil.
func NewPullMetrics(throttle ThrottleStats, design CacheStats) *PullMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if throttle != nil {
		registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "bridge", Subsystem: "factory", Name: "in_flight",
				Help: "Factory calls currently holding a slot.",
			}, func() float64 { return float64(throttle.InFlight()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "bridge", Subsystem: "factory", Name: "waiting",
				Help: "Factory calls waiting for a slot.",
			}, func() float64 { return float64(throttle.Waiting()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "bridge", Subsystem: "factory", Name: "in_flight_peak",
				Help: "Highest concurrent factory calls observed.",
			}, func() float64 { return float64(throttle.Peak()) }),
		)
	}

	if design != nil {
		registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "bridge", Subsystem: "design_cache", Name: "hits_total",
				Help: "Design session lookups served from cache.",
			}, func() float64 { h, _ := design(); return float64(h) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "bridge", Subsystem: "design_cache", Name: "misses_total",
				Help: "Design session lookups that went to the plugin API.",
			}, func() float64 { _, m := design(); return float64(m) }),
		)
	}

	imageCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge", Subsystem: "image_cache", Name: "lookups_total",
		Help: "Rewritten PNG cache lookups by result.",
	}, []string{"result"})
	registry.MustRegister(imageCache)

	return &PullMetrics{registry: registry, imageCache: imageCache}
}

// ObserveImageCache counts one image cache lookup
func (p *PullMetrics) ObserveImageCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.imageCache.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry
func (p *PullMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format
func (p *PullMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
