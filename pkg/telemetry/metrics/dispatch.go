package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/cadence/pkg/config"
)

// DispatchMetrics tracks per-channel delivery attempts.
//
// Metrics:
//   - cadence_dispatch_attempts_total: Delivery attempts by channel and status
//   - cadence_dispatch_duration_seconds: Channel send duration
type DispatchMetrics struct {
	attemptsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewDispatchMetrics creates and registers dispatch metrics with the provided registry.
func NewDispatchMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DispatchMetrics {
	dm := &DispatchMetrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "dispatch",
				Name:      "attempts_total",
				Help:      "Total number of channel delivery attempts by status",
			},
			[]string{"channel", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Duration of channel sends in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 9), // 0.5ms to ~33s
			},
			[]string{"channel"},
		),
	}

	registry.MustRegister(dm.attemptsTotal, dm.duration)
	return dm
}

// RecordAttempt records one channel send.
func (dm *DispatchMetrics) RecordAttempt(channel, status string, d time.Duration) {
	dm.attemptsTotal.WithLabelValues(channel, status).Inc()
	dm.duration.WithLabelValues(channel).Observe(d.Seconds())
}
