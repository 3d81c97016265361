package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/cadence/pkg/content"
	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/decision"
	"mercator-hq/cadence/pkg/dispatch"
	"mercator-hq/cadence/pkg/experiment"
	"mercator-hq/cadence/pkg/frequency"
	"mercator-hq/cadence/pkg/guardrail"
	"mercator-hq/cadence/pkg/ledger"
	"mercator-hq/cadence/pkg/telemetry/tracing"
)

// DefaultTimeout bounds one trigger from decision to ledger append.
const DefaultTimeout = 30 * time.Second

// Status summarizes how a trigger run ended.
type Status string

// Run outcomes.
const (
	StatusDispatched Status = "dispatched"
	StatusSkipped    Status = "skipped"
	StatusBlocked    Status = "blocked"
	StatusHeld       Status = "held_for_review"
)

// Result is everything one trigger run produced.
type Result struct {
	Status     Status             `json:"status"`
	Decision   decision.Decision  `json:"decision"`
	Guardrails *guardrail.Outcome `json:"guardrails,omitempty"`
	Dispatch   []dispatch.Result  `json:"dispatch"`

	// ExperimentID and VariantID are set when the decision started or
	// joined a creative test.
	ExperimentID string `json:"experiment_id,omitempty"`
	VariantID    string `json:"variant_id,omitempty"`

	LedgerSeq int64 `json:"ledger_seq"`
}

// Observer receives pipeline outcomes, typically for metrics.
type Observer interface {
	ObserveDecision(policy, action string)
	ObserveGuardrails(outcome guardrail.Outcome)
	ObserveRun(status string, duration time.Duration)
}

// Deps are the components the orchestrator drives. Experiments and
// Frequency are optional.
type Deps struct {
	Customers   customer.Provider
	Router      *decision.Router
	Gate        *guardrail.Gate
	Dispatcher  *dispatch.Dispatcher
	Ledger      *ledger.Ledger
	Experiments *experiment.Engine
	Frequency   *frequency.Tracker
}

// Config holds orchestrator settings.
type Config struct {
	Brand content.Brand

	// HoldForReview withholds dispatch of decisions that require human
	// review. They are still gated and recorded.
	HoldForReview bool

	Timeout time.Duration
}

// Orchestrator runs the decision → gate → dispatch → ledger sequence for
// one customer trigger at a time. It is safe for concurrent use; runs for
// different customers proceed independently.
type Orchestrator struct {
	deps     Deps
	config   Config
	observer Observer
	tracer   trace.Tracer
	logger   *slog.Logger

	// expMu serializes find-or-create of per-campaign experiments.
	expMu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(p *Orchestrator) { p.observer = o }
}

// WithTracer overrides the tracer. The default uses the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Orchestrator) { p.tracer = t }
}

// New creates an orchestrator. Customers, Router, Gate, Dispatcher and
// Ledger are required.
func New(deps Deps, cfg Config, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Customers == nil:
		return nil, errors.New("pipeline: customer provider is required")
	case deps.Router == nil:
		return nil, errors.New("pipeline: decision router is required")
	case deps.Gate == nil:
		return nil, errors.New("pipeline: guardrail gate is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("pipeline: dispatcher is required")
	case deps.Ledger == nil:
		return nil, errors.New("pipeline: ledger is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	p := &Orchestrator{
		deps:   deps,
		config: cfg,
		tracer: otel.Tracer("mercator-hq/cadence/pipeline"),
		logger: slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProcessTrigger fetches the customer, asks the routed policy for a
// decision, gates it, dispatches it when allowed and records it in the
// ledger. Skips, blocks and channel failures are reported in the Result;
// an error means the run could not complete (unknown customer, ledger
// failure or timeout).
func (p *Orchestrator) ProcessTrigger(ctx context.Context, customerID string, tc decision.Context) (*Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "pipeline.process_trigger",
		trace.WithAttributes(
			attribute.String("cadence.customer_id", customerID),
			attribute.String("cadence.trigger", tc.Trigger),
		))

	res, err := p.run(ctx, customerID, tc)
	if err != nil {
		tracing.End(span, err)
		p.observeRun("error", start)
		p.logger.Error("trigger processing failed",
			"customer_id", customerID,
			"trigger", tc.Trigger,
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("cadence.decision_id", res.Decision.ID),
		attribute.String("cadence.action", res.Decision.Action),
		attribute.String("cadence.status", string(res.Status)),
	)
	tracing.End(span, nil)
	p.observeRun(string(res.Status), start)

	p.logger.Info("trigger processed",
		"customer_id", customerID,
		"trigger", tc.Trigger,
		"policy", res.Decision.Policy,
		"action", res.Decision.Action,
		"status", res.Status,
		"duration", time.Since(start),
	)
	return res, nil
}

func (p *Orchestrator) run(ctx context.Context, customerID string, tc decision.Context) (*Result, error) {
	rec, err := p.deps.Customers.Get(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("fetch customer %s: %w", customerID, err)
	}
	rec.Normalize()

	d := p.deps.Router.Decide(rec, tc)
	if p.observer != nil {
		p.observer.ObserveDecision(d.Policy, d.Action)
	}
	res := &Result{Decision: d}

	if d.Skipped() {
		res.Status = StatusSkipped
		return p.record(ctx, res, nil)
	}

	// A creative test sends the assigned variant's copy, so the variant is
	// chosen before the gate sees any content.
	if d.Policy == decision.PolicyCreativeTest && p.deps.Experiments != nil {
		variant, err := p.joinExperiment(ctx, rec, d)
		if err != nil {
			return nil, err
		}
		res.ExperimentID, res.VariantID = variant.experimentID, variant.ID
		if variant.Creative != nil {
			cr := *variant.Creative
			d.Copy = &cr
			res.Decision = d
		}
	}

	gateContent := content.Compose(d, rec, p.config.Brand)
	_, gateSpan := p.tracer.Start(ctx, "pipeline.guardrails")
	outcome := p.deps.Gate.Evaluate(ctx, rec, gateContent)
	res.Guardrails = &outcome
	gateSpan.SetAttributes(
		attribute.Bool("cadence.guardrails.passed", outcome.Passed),
		attribute.StringSlice("cadence.guardrails.failed", outcome.Failed()),
	)
	gateSpan.End()
	if p.observer != nil {
		p.observer.ObserveGuardrails(outcome)
	}

	switch {
	case !outcome.Passed:
		res.Status = StatusBlocked
	case d.RequiresHumanReview && p.config.HoldForReview:
		res.Status = StatusHeld
	default:
		if err := p.dispatch(ctx, rec, gateContent.MessageType, res); err != nil {
			return nil, err
		}
		res.Status = StatusDispatched
	}
	return p.record(ctx, res, outcome.PassMap())
}

// dispatch personalizes and sends the gated decision.
func (p *Orchestrator) dispatch(ctx context.Context, rec *customer.Record, messageType string, res *Result) error {
	d := res.Decision
	ctx, span := p.tracer.Start(ctx, "pipeline.dispatch",
		trace.WithAttributes(attribute.StringSlice("cadence.channels", d.Channels)))
	defer span.End()

	msg := content.Personalize(d, rec, p.config.Brand)
	res.Dispatch = p.deps.Dispatcher.Dispatch(ctx, rec.ID, content.Contact(rec), msg, d.Channels)

	if !delivered(res.Dispatch) {
		return nil
	}
	if p.deps.Frequency != nil {
		p.deps.Frequency.Record(rec.ID, messageType)
	}
	if res.ExperimentID != "" {
		if _, err := p.deps.Experiments.RecordEvent(ctx, res.ExperimentID, res.VariantID, experiment.EventImpression, 0); err != nil {
			p.logger.Warn("failed to record experiment impression",
				"experiment_id", res.ExperimentID,
				"variant_id", res.VariantID,
				"error", err,
			)
		}
	}
	return nil
}

type assignedVariant struct {
	experiment.Variant
	experimentID string
}

// joinExperiment finds the running experiment for the decision's campaign,
// creating it on first use, and assigns the customer to a variant.
func (p *Orchestrator) joinExperiment(ctx context.Context, rec *customer.Record, d decision.Decision) (assignedVariant, error) {
	campaignID, _ := d.Parameters["campaign_id"].(string)
	name := "creative_test:" + campaignID

	p.expMu.Lock()
	var exp *experiment.Experiment
	for _, e := range p.deps.Experiments.List(ctx, experiment.StatusRunning) {
		if e.Name == name {
			exp = e
			break
		}
	}
	if exp == nil {
		specs, ok := decision.Plan(d)
		if !ok {
			p.expMu.Unlock()
			return assignedVariant{}, fmt.Errorf("creative test decision %s has no variant plan", d.ID)
		}
		confidence, _ := d.Parameters["confidence_threshold"].(float64)
		created, err := p.deps.Experiments.Create(ctx, experiment.CreateRequest{
			Name:            name,
			ConfidenceLevel: confidence,
			Variants:        specs,
		})
		if err != nil {
			p.expMu.Unlock()
			return assignedVariant{}, fmt.Errorf("create experiment for campaign %s: %w", campaignID, err)
		}
		exp = created
		p.logger.Info("creative test started",
			"experiment_id", exp.ID,
			"campaign_id", campaignID,
			"variants", len(exp.Variants),
		)
	}
	p.expMu.Unlock()

	v, err := p.deps.Experiments.Assign(ctx, exp.ID, rec.ID)
	if err != nil {
		return assignedVariant{}, err
	}
	return assignedVariant{Variant: v, experimentID: exp.ID}, nil
}

// record appends the decision to the ledger. The ledger append is the only
// failure that aborts a run after the decision was made.
func (p *Orchestrator) record(ctx context.Context, res *Result, checks map[string]bool) (*Result, error) {
	entry, err := p.deps.Ledger.Append(ctx, res.Decision, checks, res.Decision.RequiresHumanReview)
	if err != nil {
		return nil, fmt.Errorf("record decision %s: %w", res.Decision.ID, err)
	}
	res.LedgerSeq = entry.Seq
	return res, nil
}

func (p *Orchestrator) observeRun(status string, start time.Time) {
	if p.observer != nil {
		p.observer.ObserveRun(status, time.Since(start))
	}
}

func delivered(results []dispatch.Result) bool {
	for _, r := range results {
		if r.Status == dispatch.StatusSent || r.Status == dispatch.StatusQueued {
			return true
		}
	}
	return false
}
