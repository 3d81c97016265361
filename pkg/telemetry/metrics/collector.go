package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/cadence/pkg/config"
	"mercator-hq/cadence/pkg/guardrail"
)

// otherLabel replaces label values beyond the cardinality limit.
const otherLabel = "other"

// Collector is the single Prometheus entry point for Cadence. It satisfies
// the observer interfaces of the pipeline, dispatcher and experiment
// engine, so one value can be handed to all three.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	pipeline   *PipelineMetrics
	guardrail  *GuardrailMetrics
	dispatch   *DispatchMetrics
	experiment *ExperimentMetrics

	// caps distinct (policy, action) label sets
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering into registry, or a fresh
// registry when nil. Go runtime and process collectors are included.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		pipeline:           NewPipelineMetrics(cfg, registry),
		guardrail:          NewGuardrailMetrics(cfg, registry),
		dispatch:           NewDispatchMetrics(cfg, registry),
		experiment:         NewExperimentMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

// ObserveRun records a finished trigger run.
func (c *Collector) ObserveRun(status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.pipeline.RecordRun(status, duration)
}

// ObserveDecision records a policy decision.
func (c *Collector) ObserveDecision(policy, action string) {
	if !c.config.Enabled {
		return
	}
	if !c.cardinalityLimiter.Allow(fmt.Sprintf("decision:%s:%s", policy, action)) {
		action = otherLabel
	}
	c.pipeline.RecordDecision(policy, action)
}

// ObserveGuardrails records a gate outcome.
func (c *Collector) ObserveGuardrails(outcome guardrail.Outcome) {
	if !c.config.Enabled {
		return
	}
	c.guardrail.RecordOutcome(outcome)
}

// ObserveDispatch records one channel send.
func (c *Collector) ObserveDispatch(channel, status string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.dispatch.RecordAttempt(channel, status, d)
}

// ObserveExperimentEvent records an experiment event.
func (c *Collector) ObserveExperimentEvent(event string) {
	if !c.config.Enabled {
		return
	}
	c.experiment.RecordEvent(event)
}

// ObserveExperimentWinner records a winner declaration.
func (c *Collector) ObserveExperimentWinner(experimentID, variantID string) {
	if !c.config.Enabled {
		return
	}
	c.experiment.RecordWinner()
}

// TrackLedgerSize exposes cadence_ledger_entries, read from size at
// scrape time.
func (c *Collector) TrackLedgerSize(size func() float64) error {
	return c.registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Name:      "ledger_entries",
			Help:      "Number of entries in the audit ledger",
		},
		size,
	))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already tracked or fits under the
// limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
