package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/cadence/pkg/config"
)

// PipelineMetrics tracks trigger runs and the decisions they produce.
//
// Metrics:
//   - cadence_pipeline_runs_total: Trigger runs by outcome status
//   - cadence_pipeline_run_duration_seconds: Trigger run duration by status
//   - cadence_decisions_total: Decisions by policy and action
type PipelineMetrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	decisionsTotal *prometheus.CounterVec
}

// NewPipelineMetrics creates and registers pipeline metrics with the provided registry.
func NewPipelineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PipelineMetrics {
	pm := &PipelineMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of trigger runs by outcome",
			},
			[]string{"status"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Duration of trigger runs in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"status"},
		),

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "decisions_total",
				Help:      "Total number of decisions by policy and action",
			},
			[]string{"policy", "action"},
		),
	}

	registry.MustRegister(pm.runsTotal, pm.runDuration, pm.decisionsTotal)
	return pm
}

// RecordRun records a finished trigger run.
func (pm *PipelineMetrics) RecordRun(status string, duration time.Duration) {
	pm.runsTotal.WithLabelValues(status).Inc()
	pm.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDecision records a decision.
func (pm *PipelineMetrics) RecordDecision(policy, action string) {
	pm.decisionsTotal.WithLabelValues(policy, action).Inc()
}
