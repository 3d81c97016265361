package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/cadence/pkg/config"
)

// ExperimentMetrics tracks experiment events and winner declarations.
//
// Metrics:
//   - cadence_experiment_events_total: Recorded events by type
//   - cadence_experiment_winners_total: Experiments that declared a winner
type ExperimentMetrics struct {
	eventsTotal  *prometheus.CounterVec
	winnersTotal prometheus.Counter
}

// NewExperimentMetrics creates and registers experiment metrics with the provided registry.
func NewExperimentMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ExperimentMetrics {
	em := &ExperimentMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "experiment",
				Name:      "events_total",
				Help:      "Total number of experiment events by type",
			},
			[]string{"event"},
		),

		winnersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "experiment",
				Name:      "winners_total",
				Help:      "Total number of experiments that declared a winner",
			},
		),
	}

	registry.MustRegister(em.eventsTotal, em.winnersTotal)
	return em
}

// RecordEvent records an impression, click or conversion.
func (em *ExperimentMetrics) RecordEvent(event string) {
	em.eventsTotal.WithLabelValues(event).Inc()
}

// RecordWinner records a winner declaration.
func (em *ExperimentMetrics) RecordWinner() {
	em.winnersTotal.Inc()
}
