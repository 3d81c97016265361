package experiment

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Observer is notified about engine activity. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveExperimentEvent(event string)
	ObserveExperimentWinner(experimentID, variantID string)
}

// Engine manages experiments. All mutations are serialized by a single lock
// so counter increments are never lost, and every mutation is written
// through to the store before the lock is released.
type Engine struct {
	mu          sync.Mutex
	experiments map[string]*Experiment

	store    Store
	observer Observer
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides experiment id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an engine persisting to store. A nil store keeps
// experiments in memory only.
func NewEngine(store Store, opts ...Option) *Engine {
	if store == nil {
		store = NewMemoryStore()
	}
	e := &Engine{
		experiments: make(map[string]*Experiment),
		store:       store,
		now:         time.Now,
		newID:       func() string { return "exp_" + uuid.NewString() },
		logger:      slog.Default().With("component", "experiment.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load reads all experiments from the store into memory.
func (e *Engine) Load(ctx context.Context) error {
	list, err := e.store.List(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, exp := range list {
		if err := exp.Validate(); err != nil {
			return fmt.Errorf("loading experiment %s: %w", exp.ID, err)
		}
		e.experiments[exp.ID] = exp
	}
	e.logger.Info("experiments loaded", "count", len(list))
	return nil
}

// Create validates and registers a new running experiment.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Experiment, error) {
	now := e.now()
	exp := &Experiment{
		ID:              e.newID(),
		Name:            req.Name,
		CreatedAt:       now,
		UpdatedAt:       now,
		Status:          StatusRunning,
		ConfidenceLevel: req.ConfidenceLevel,
		Variants:        make([]Variant, len(req.Variants)),
	}
	if exp.ConfidenceLevel == 0 {
		exp.ConfidenceLevel = DefaultConfidenceLevel
	}
	for i, spec := range req.Variants {
		id := spec.ID
		if id == "" {
			id = fmt.Sprintf("variant_%d", i)
			if i == 0 {
				id = ControlID
			}
		}
		name := spec.Name
		if name == "" {
			name = id
		}
		v := Variant{ID: id, Name: name, TrafficShare: spec.TrafficShare}
		if spec.Creative != nil {
			cr := *spec.Creative
			v.Creative = &cr
		}
		exp.Variants[i] = v
	}

	if err := exp.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Save(ctx, exp); err != nil {
		return nil, err
	}
	e.experiments[exp.ID] = exp

	e.logger.Info("experiment created",
		"experiment_id", exp.ID,
		"name", exp.Name,
		"variants", len(exp.Variants),
	)
	return exp.Clone(), nil
}

// Get returns a snapshot of the experiment.
func (e *Engine) Get(ctx context.Context, id string) (*Experiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return exp.Clone(), nil
}

// List returns snapshots of all experiments, optionally filtered by status,
// ordered by creation time.
func (e *Engine) List(ctx context.Context, status Status) []*Experiment {
	e.mu.Lock()
	out := make([]*Experiment, 0, len(e.experiments))
	for _, exp := range e.experiments {
		if status != "" && exp.Status != status {
			continue
		}
		out = append(out, exp.Clone())
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RecordEvent applies one event to a variant of a running experiment and
// returns the updated variant. Impressions and conversions increment by one;
// revenue adds value, which must be finite and non-negative.
func (e *Engine) RecordEvent(ctx context.Context, id, variantID string, event EventType, value float64) (Variant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, err := e.lookup(id)
	if err != nil {
		return Variant{}, err
	}
	if exp.Status != StatusRunning {
		return Variant{}, &StateError{ExperimentID: id, Operation: "record " + string(event) + " for", Status: exp.Status}
	}
	idx := exp.variantIndex(variantID)
	if idx < 0 {
		return Variant{}, fmt.Errorf("%w: variant %s in experiment %s", ErrNotFound, variantID, id)
	}

	next := exp.Clone()
	v := &next.Variants[idx]
	switch event {
	case EventImpression:
		v.Impressions++
	case EventConversion:
		if v.Conversions >= v.Impressions {
			return Variant{}, &InvariantError{ExperimentID: id, Reason: fmt.Sprintf("variant %q has %d conversions for %d impressions", variantID, v.Conversions+1, v.Impressions)}
		}
		v.Conversions++
	case EventRevenue:
		if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			return Variant{}, &InvariantError{ExperimentID: id, Reason: fmt.Sprintf("revenue %v must be finite and non-negative", value)}
		}
		v.Revenue += value
	default:
		return Variant{}, &InvariantError{ExperimentID: id, Reason: fmt.Sprintf("unknown event type %q", event)}
	}
	next.UpdatedAt = e.now()

	if err := e.commit(ctx, next); err != nil {
		return Variant{}, err
	}
	if e.observer != nil {
		e.observer.ObserveExperimentEvent(string(event))
	}
	return *v, nil
}

// Winner evaluates every challenger against control in variant order. The
// first significant challenger that converts above control becomes the
// winner, provided the experiment is running. Once set, the winner is
// returned unchanged until Reset.
func (e *Engine) Winner(ctx context.Context, id string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, exp)
}

func (e *Engine) evaluate(ctx context.Context, exp *Experiment) (*Result, error) {
	res := &Result{
		ExperimentID: exp.ID,
		Status:       exp.Status,
		WinnerID:     exp.WinnerID,
		Comparisons:  make([]Comparison, 0, len(exp.Variants)-1),
	}

	control := exp.Control()
	candidate := ""
	for _, v := range exp.Variants[1:] {
		c := Compare(control, v, exp.ConfidenceLevel)
		res.Comparisons = append(res.Comparisons, c)
		if candidate == "" && c.Wins() {
			candidate = v.ID
		}
	}

	if exp.WinnerID != "" || candidate == "" || exp.Status != StatusRunning {
		return res, nil
	}

	next := exp.Clone()
	next.WinnerID = candidate
	next.UpdatedAt = e.now()
	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}
	res.WinnerID = candidate

	e.logger.Info("experiment winner declared",
		"experiment_id", exp.ID,
		"variant_id", candidate,
	)
	if e.observer != nil {
		e.observer.ObserveExperimentWinner(exp.ID, candidate)
	}
	return res, nil
}

// EvaluateRunning runs the winner evaluation on every running experiment
// without a winner and returns how many winners were declared.
func (e *Engine) EvaluateRunning(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	declared := 0
	var errs []error
	for _, exp := range e.experiments {
		if exp.Status != StatusRunning || exp.WinnerID != "" {
			continue
		}
		res, err := e.evaluate(ctx, exp)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res.WinnerID != "" {
			declared++
		}
	}
	return declared, errors.Join(errs...)
}

// Close moves a running experiment to completed.
func (e *Engine) Close(ctx context.Context, id string) (*Experiment, error) {
	return e.transition(ctx, id, "close", StatusRunning, StatusCompleted)
}

// Archive moves a completed experiment to archived.
func (e *Engine) Archive(ctx context.Context, id string) (*Experiment, error) {
	return e.transition(ctx, id, "archive", StatusCompleted, StatusArchived)
}

func (e *Engine) transition(ctx context.Context, id, op string, from, to Status) (*Experiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	if exp.Status != from {
		return nil, &StateError{ExperimentID: id, Operation: op, Status: exp.Status}
	}

	next := exp.Clone()
	next.Status = to
	next.UpdatedAt = e.now()
	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}

	e.logger.Info("experiment status changed", "experiment_id", id, "from", from, "to", to)
	return next.Clone(), nil
}

// Reset clears the winner and all counters and returns the experiment to
// running. Archived experiments cannot be reset.
func (e *Engine) Reset(ctx context.Context, id string) (*Experiment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	if exp.Status == StatusArchived {
		return nil, &StateError{ExperimentID: id, Operation: "reset", Status: exp.Status}
	}

	next := exp.Clone()
	next.Status = StatusRunning
	next.WinnerID = ""
	for i := range next.Variants {
		next.Variants[i].Impressions = 0
		next.Variants[i].Conversions = 0
		next.Variants[i].Revenue = 0
	}
	next.UpdatedAt = e.now()
	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}

	e.logger.Info("experiment reset", "experiment_id", id)
	return next.Clone(), nil
}

// Assign deterministically maps a subject (usually a customer id) to a
// variant by hashing it into the cumulative traffic share table.
func (e *Engine) Assign(ctx context.Context, id, subject string) (Variant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, err := e.lookup(id)
	if err != nil {
		return Variant{}, err
	}

	h := fnv.New64a()
	h.Write([]byte(exp.ID))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	point := float64(h.Sum64()%10000) / 10000

	acc := 0.0
	for _, v := range exp.Variants {
		acc += v.TrafficShare
		if point < acc {
			return v, nil
		}
	}
	return exp.Variants[len(exp.Variants)-1], nil
}

// lookup must be called with e.mu held.
func (e *Engine) lookup(id string) (*Experiment, error) {
	exp, ok := e.experiments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return exp, nil
}

// commit validates next, persists it and swaps it in. Must be called with
// e.mu held. On failure the previous state is kept.
func (e *Engine) commit(ctx context.Context, next *Experiment) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if err := e.store.Save(ctx, next); err != nil {
		return err
	}
	e.experiments[next.ID] = next
	return nil
}
