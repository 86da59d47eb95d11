package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/idforge/idforge"
	"github.com/idforge/idforge/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() idforge.MetricsSnapshot
	AuditDropped() uint64
}

// Collector implements prometheus.Collector over an engine's metrics
// snapshot. Collection is read-only and allocation-light; one snapshot
// per scrape.
type Collector struct {
	source       metricsSource
	counterDescs []*prometheus.Desc
	histDescs    []*prometheus.Desc
	droppedDesc  *prometheus.Desc
	bounds       []float64
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector reading from the given engine.
func NewCollector(engine *idforge.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource builds a collector from a custom source,
// mostly useful in tests.
func NewCollectorFromSource(source metricsSource) *Collector {
	c := &Collector{
		source:       source,
		counterDescs: make([]*prometheus.Desc, 0, len(internaldefs.CounterDefs)),
		histDescs:    make([]*prometheus.Desc, 0, len(internaldefs.HistogramDefs)),
		droppedDesc: prometheus.NewDesc(
			"idforge_audit_dropped_total",
			"Dropped audit events due to dispatcher backpressure.",
			nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counterDescs = append(c.counterDescs, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histDescs = append(c.histDescs, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, bound := range idforge.HistogramBounds() {
		c.bounds = append(c.bounds, bound.Seconds())
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.counterDescs {
		ch <- desc
	}
	for _, desc := range c.histDescs {
		ch <- desc
	}
	ch <- c.droppedDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(
			c.counterDescs[i], prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}

	for i, def := range internaldefs.HistogramDefs {
		raw := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(raw)
		buckets := make(map[float64]uint64, len(c.bounds))
		for j, bound := range c.bounds {
			buckets[bound] = cumulative[j]
		}
		count := cumulative[len(cumulative)-1]
		// Sum is not tracked by the engine; zero keeps the series shape
		// valid for rate and quantile queries over buckets.
		ch <- prometheus.MustNewConstHistogram(c.histDescs[i], count, 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(
		c.droppedDesc, prometheus.CounterValue, float64(c.source.AuditDropped()))
}
