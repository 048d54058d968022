package backend

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Backend-level Prometheus metrics. All metrics carry a "backend" label so
// candidates can be distinguished in dashboards and alerts.
var (
	// EvictionsTotal counts successful eviction operations per backend.
	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_backend_evictions_total",
			Help: "Total number of successful eviction operations per backend.",
		},
		[]string{"backend", "kind"},
	)

	// ErrorsTotal counts failed eviction operations per backend.
	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_backend_errors_total",
			Help: "Total number of failed eviction operations per backend.",
		},
		[]string{"backend", "kind"},
	)
)

func init() {
	prometheus.MustRegister(
		EvictionsTotal,
		ErrorsTotal,
	)
}

const (
	kindEntity = "entity"
	kindRegion = "region"
	kindClear  = "clear"
)

// availabilityCollector is a Prometheus Collector that lazily probes one
// backend's availability at scrape time. Probing lazily rather than keeping a
// gauge up to date matches how the selector treats availability: a momentary
// fact, never cached.
type availabilityCollector struct {
	desc      *prometheus.Desc
	available func(ctx context.Context) bool
}

func (c *availabilityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *availabilityCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	up := 0.0
	if c.available(ctx) {
		up = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, up)
}

var (
	availabilityMu         sync.Mutex
	availabilityCollectors = make(map[string]*availabilityCollector)
	// availabilityReg is the Prometheus registerer used for availability
	// collectors. Exposed as a variable so tests can substitute an isolated
	// registry.
	availabilityReg prometheus.Registerer = prometheus.DefaultRegisterer
)

// registerAvailabilityCollector registers a per-backend availability gauge
// that probes the backend at scrape time. An existing collector for the same
// backend name is replaced, making repeated construction (e.g., in tests) safe.
func registerAvailabilityCollector(name string, available func(ctx context.Context) bool) *availabilityCollector {
	desc := prometheus.NewDesc(
		"cache_backend_up",
		"Whether the backend currently reports itself available.",
		nil,
		prometheus.Labels{"backend": name},
	)
	c := &availabilityCollector{desc: desc, available: available}

	availabilityMu.Lock()
	defer availabilityMu.Unlock()

	if old, ok := availabilityCollectors[name]; ok {
		availabilityReg.Unregister(old)
	}
	availabilityCollectors[name] = c
	_ = availabilityReg.Register(c)
	return c
}

// unregisterAvailabilityCollector removes the availability collector for the
// given backend name.
func unregisterAvailabilityCollector(name string) {
	availabilityMu.Lock()
	defer availabilityMu.Unlock()

	if c, ok := availabilityCollectors[name]; ok {
		availabilityReg.Unregister(c)
		delete(availabilityCollectors, name)
	}
}
