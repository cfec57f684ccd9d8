package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search cache metrics, labelled with the ProviderConfig Group.
var (
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_lookups_total",
			Help: "Search cache lookups by result (hit, miss).",
		},
		[]string{"cache", "result"},
	)

	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_evictions_total",
			Help: "Search responses dropped by expiry sweeps or the size bound.",
		},
		[]string{"cache"},
	)

	InvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_invalidations_total",
			Help: "Search responses dropped because they could not be decoded.",
		},
		[]string{"cache"},
	)
)

func init() {
	prometheus.MustRegister(LookupsTotal, EvictionsTotal, InvalidationsTotal)
}

// entriesCollector reports the live entry count of one group at scrape time.
// Redis and Badger expire entries on their own, so the count is never kept in process.
type entriesCollector struct {
	desc *prometheus.Desc
	len  func() int
}

func (c *entriesCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *entriesCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(c.len()))
}

var (
	entriesMu         sync.Mutex
	entriesCollectors = make(map[string]*entriesCollector)
	// entriesRegistry is swapped for an isolated registry in tests.
	entriesRegistry prometheus.Registerer = prometheus.DefaultRegisterer
)

// registerEntriesCollector replaces any collector already registered for group.
func registerEntriesCollector(group string, lenFunc func() int) {
	c := &entriesCollector{
		desc: prometheus.NewDesc(
			"search_cache_entries",
			"Live entries in the search cache.",
			nil,
			prometheus.Labels{"cache": group},
		),
		len: lenFunc,
	}

	entriesMu.Lock()
	defer entriesMu.Unlock()
	if old, ok := entriesCollectors[group]; ok {
		entriesRegistry.Unregister(old)
	}
	entriesCollectors[group] = c
	_ = entriesRegistry.Register(c)
}

func unregisterEntriesCollector(group string) {
	entriesMu.Lock()
	defer entriesMu.Unlock()
	if c, ok := entriesCollectors[group]; ok {
		entriesRegistry.Unregister(c)
		delete(entriesCollectors, group)
	}
}
