package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Eviction pipeline metrics
var (
	// EvictionsCollectedTotal counts evictions handed to the collector by the
	// ORM change hook, per operation.
	EvictionsCollectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evictions_collected_total",
			Help: "Total number of evictions collected from the write path.",
		},
		[]string{"operation"},
	)

	// BatchesTotal counts flushed eviction batches by how they completed.
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eviction_batches_total",
			Help: "Total number of committed eviction batches by outcome.",
		},
		[]string{"outcome"},
	)

	// DistributionFailuresTotal counts async distribution attempts that
	// exhausted their retries and fell back to direct eviction.
	DistributionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "eviction_distribution_failures_total",
			Help: "Total number of eviction batches whose async distribution failed.",
		},
	)

	// FallbackEvictionsTotal counts entries processed on the synchronous
	// fallback path, split by whether they were evicted or ledgered.
	FallbackEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eviction_fallback_total",
			Help: "Total number of evictions handled by the synchronous fallback path.",
		},
		[]string{"outcome"},
	)

	// ReprocessTotal counts retry-ledger reprocessing results.
	ReprocessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eviction_reprocess_total",
			Help: "Total number of retry-ledger entries reprocessed, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		EvictionsCollectedTotal,
		BatchesTotal,
		DistributionFailuresTotal,
		FallbackEvictionsTotal,
		ReprocessTotal,
	)
}

// sizeCollector is a Prometheus Collector that lazily reports a size by
// calling lenFunc at scrape time, so the gauge can never drift from the
// structure it describes.
type sizeCollector struct {
	desc    *prometheus.Desc
	lenFunc func() int
}

func (c *sizeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *sizeCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(c.lenFunc()))
}

var (
	sizeCollectorMu sync.Mutex
	sizeCollectors  = make(map[string]*sizeCollector)
	// sizeReg is the Prometheus registerer used for size collectors.
	// Exposed as a variable so tests can substitute an isolated registry.
	sizeReg prometheus.Registerer = prometheus.DefaultRegisterer
)

// RegisterSizeCollector registers a lazily evaluated gauge with the given
// metric name. An existing collector under the same name is replaced, making
// repeated registration (e.g., in tests) safe.
func RegisterSizeCollector(name, help string, lenFunc func() int) {
	desc := prometheus.NewDesc(name, help, nil, nil)
	c := &sizeCollector{desc: desc, lenFunc: lenFunc}

	sizeCollectorMu.Lock()
	defer sizeCollectorMu.Unlock()

	if old, ok := sizeCollectors[name]; ok {
		sizeReg.Unregister(old)
	}
	sizeCollectors[name] = c
	_ = sizeReg.Register(c)
}

// UnregisterSizeCollector removes a previously registered size collector.
func UnregisterSizeCollector(name string) {
	sizeCollectorMu.Lock()
	defer sizeCollectorMu.Unlock()

	if c, ok := sizeCollectors[name]; ok {
		sizeReg.Unregister(c)
		delete(sizeCollectors, name)
	}
}
