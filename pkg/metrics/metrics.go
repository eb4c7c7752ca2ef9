// Package metrics exposes Prometheus instrumentation for the resolver and
// its HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"

	"github.com/1F47E/geo-region-index/pkg/models"
)

// Collector bundles the revgeo metrics. It satisfies engine.Observer so an
// engine can drive it directly. A nil *Collector is a valid no-op.
type Collector struct {
	gatherer prometheus.Gatherer

	Resolves        *prometheus.CounterVec
	ResolveDuration prometheus.Histogram
	Ambiguous       *prometheus.CounterVec
	RegionsLoaded   *prometheus.GaugeVec
	HTTPRequests    *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice on the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	resolves, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "revgeo_resolve_total",
		Help: "Resolved coordinates, labeled by the number of levels matched.",
	}, []string{"depth"}), "revgeo_resolve_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "revgeo_resolve_duration_seconds",
		Help:    "Resolve latency in seconds.",
		Buckets: []float64{0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005, 0.01},
	}), "revgeo_resolve_duration_seconds")
	if err != nil {
		return nil, err
	}

	ambiguous, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "revgeo_ambiguous_total",
		Help: "Points contained by more than one sibling region, labeled by level.",
	}, []string{"level"}), "revgeo_ambiguous_total")
	if err != nil {
		return nil, err
	}

	loaded, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "revgeo_regions_loaded",
		Help: "Regions in the serving hierarchy, labeled by level.",
	}, []string{"level"}), "revgeo_regions_loaded")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "revgeo_http_requests_total",
		Help: "Handled HTTP requests, labeled by route and status code.",
	}, []string{"route", "status"}), "revgeo_http_requests_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Resolves:        resolves,
		ResolveDuration: duration,
		Ambiguous:       ambiguous,
		RegionsLoaded:   loaded,
		HTTPRequests:    requests,
	}, nil
}

// ObserveLoad sets the per-level region gauges. Levels missing from counts
// are reset to zero so a reload to a coarser level is visible.
func (c *Collector) ObserveLoad(counts map[models.Level]int) {
	if c == nil || c.RegionsLoaded == nil {
		return
	}
	for _, level := range models.Levels {
		c.RegionsLoaded.WithLabelValues(level.String()).Set(float64(counts[level]))
	}
}

func (c *Collector) ObserveResolve(depth int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.Resolves != nil {
		c.Resolves.WithLabelValues(strconv.Itoa(depth)).Inc()
	}
	if c.ResolveDuration != nil {
		c.ResolveDuration.Observe(elapsed.Seconds())
	}
}

func (c *Collector) ObserveAmbiguity(level models.Level) {
	if c == nil || c.Ambiguous == nil {
		return
	}
	c.Ambiguous.WithLabelValues(level.String()).Inc()
}

// ObserveRequest counts one handled HTTP request.
func (c *Collector) ObserveRequest(route string, status int) {
	if c == nil || c.HTTPRequests == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, eris.Errorf("metrics: %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "metrics: register %s", name)
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, eris.Errorf("metrics: %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "metrics: register %s", name)
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, eris.Errorf("metrics: %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "metrics: register %s", name)
	}
	return h, nil
}
