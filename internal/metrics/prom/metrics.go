// Package prom exports reference resolution metrics to Prometheus.
package prom

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

const namespace = "gfm"

// Metrics implements interfaces.ReferenceMetrics with Prometheus
// collectors.
type Metrics struct {
	duration     *prometheus.HistogramVec
	resolved     *prometheus.CounterVec
	lookupErrors *prometheus.CounterVec
}

var _ interfaces.ReferenceMetrics = (*Metrics)(nil)

// New creates the collectors and registers them with reg. A nil reg
// registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "references",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving references, by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"kind"}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "references",
			Name:      "resolved_total",
			Help:      "References processed, by kind and whether they linked.",
		}, []string{"kind", "resolvable"}),
		lookupErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "references",
			Name:      "lookup_errors_total",
			Help:      "Lookup service failures, by kind.",
		}, []string{"kind"}),
	}
	for _, collector := range []prometheus.Collector{m.duration, m.resolved, m.lookupErrors} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveResolveDuration(kind interfaces.ReferenceKind, duration time.Duration) {
	m.duration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

func (m *Metrics) IncrementResolved(kind interfaces.ReferenceKind, resolvable bool) {
	m.resolved.WithLabelValues(string(kind), strconv.FormatBool(resolvable)).Inc()
}

func (m *Metrics) IncrementLookupError(kind interfaces.ReferenceKind) {
	m.lookupErrors.WithLabelValues(string(kind)).Inc()
}
