package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the ledger as Prometheus gauges labelled by class.
type Collector struct {
	ledger *Ledger

	alive                *prometheus.Desc
	constructions        *prometheus.Desc
	defaultConstructions *prometheus.Desc
	destructions         *prometheus.Desc
}

// NewCollector returns a prometheus.Collector reading from l.
func NewCollector(l *Ledger, namespace string) *Collector {
	labels := []string{"class"}
	return &Collector{
		ledger: l,
		alive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ledger", "alive"),
			"Live native objects per class.", labels, nil),
		constructions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ledger", "constructions_total"),
			"Native constructions per class.", labels, nil),
		defaultConstructions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ledger", "default_constructions_total"),
			"Native default constructions per class.", labels, nil),
		destructions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ledger", "destructions_total"),
			"Native destructions per class.", labels, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.alive
	ch <- c.constructions
	ch <- c.defaultConstructions
	ch <- c.destructions
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.ledger.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.alive, prometheus.GaugeValue, float64(s.Alive), s.Name)
		ch <- prometheus.MustNewConstMetric(c.constructions, prometheus.CounterValue, float64(s.Constructions), s.Name)
		ch <- prometheus.MustNewConstMetric(c.defaultConstructions, prometheus.CounterValue, float64(s.DefaultConstructions), s.Name)
		ch <- prometheus.MustNewConstMetric(c.destructions, prometheus.CounterValue, float64(s.Destructions), s.Name)
	}
}
