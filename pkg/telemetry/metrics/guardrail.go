package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/cadence/pkg/config"
	"mercator-hq/cadence/pkg/guardrail"
)

// GuardrailMetrics tracks gate evaluations.
//
// Metrics:
//   - cadence_guardrail_evaluations_total: Gate evaluations by result (passed, blocked)
//   - cadence_guardrail_check_failures_total: Failed checks by check name and severity
type GuardrailMetrics struct {
	evaluationsTotal *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
}

// NewGuardrailMetrics creates and registers guardrail metrics with the provided registry.
func NewGuardrailMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *GuardrailMetrics {
	gm := &GuardrailMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "guardrail",
				Name:      "evaluations_total",
				Help:      "Total number of gate evaluations by result",
			},
			[]string{"result"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "guardrail",
				Name:      "check_failures_total",
				Help:      "Total number of failed guardrail checks",
			},
			[]string{"check", "severity"},
		),
	}

	registry.MustRegister(gm.evaluationsTotal, gm.failuresTotal)
	return gm
}

// RecordOutcome records a gate outcome and each failed check in it.
func (gm *GuardrailMetrics) RecordOutcome(outcome guardrail.Outcome) {
	result := "passed"
	if !outcome.Passed {
		result = "blocked"
	}
	gm.evaluationsTotal.WithLabelValues(result).Inc()

	for name, c := range outcome.Checks {
		if !c.Passed {
			gm.failuresTotal.WithLabelValues(name, string(c.Severity)).Inc()
		}
	}
}
