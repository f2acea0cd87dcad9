package mutate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess      = "success"
	outcomeFailure      = "failure"
	outcomeInProgress   = "in_progress"
	outcomePrecondition = "precondition"
)

// Metrics records mutation outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	mutations *prometheus.CounterVec
	inFlight  prometheus.Gauge
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the mutation collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "projects_factory",
			Name:      "mutations_total",
			Help:      "Dashboard actions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "projects_factory",
			Name:      "mutations_in_flight",
			Help:      "Actions waiting on a collaborator call.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "projects_factory",
			Name:      "mutation_duration_seconds",
			Help:      "Time from optimistic apply to confirmation or rollback.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.mutations, m.inFlight, m.duration)
	}
	return m
}

func (m *Metrics) begin() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) finish(k Kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.mutations.WithLabelValues(string(k), outcome).Inc()
	m.duration.WithLabelValues(string(k)).Observe(took.Seconds())
}

func (m *Metrics) rejected(k Kind, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(string(k), outcome).Inc()
}
