package bind

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics counts construction outcomes. Metrics are only exported when a
// registerer is configured with WithRegisterer.
type metrics struct {
	constructions *prometheus.CounterVec
	failures      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		constructions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "factory",
			Name:      "constructions_total",
			Help:      "Instances constructed, by class and adopted holder.",
		}, []string{"class", "holder"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "factory",
			Name:      "failures_total",
			Help:      "Failed constructions, by class and error kind.",
		}, []string{"class", "kind"}),
	}
}

func (m *metrics) constructed(class string, holder HolderKind) {
	m.constructions.WithLabelValues(class, holder.String()).Inc()
}

func (m *metrics) failed(class string, err error) {
	kind := "factory"
	var te *TypeError
	if errors.As(err, &te) {
		kind = te.Kind.String()
	}
	m.failures.WithLabelValues(class, kind).Inc()
}
