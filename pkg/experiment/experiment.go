package experiment

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of an experiment.
type Status string

// Experiment states. Transitions: running -> completed -> archived.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// EventType is a tracked variant event.
type EventType string

// Event types accepted by Engine.RecordEvent.
const (
	EventImpression EventType = "impression"
	EventConversion EventType = "conversion"
	EventRevenue    EventType = "revenue"
)

// ControlID is the id given to the control variant when none is supplied.
const ControlID = "control"

// DefaultConfidenceLevel is used when an experiment declares none.
const DefaultConfidenceLevel = 0.95

// shareTolerance bounds the allowed drift of the traffic share sum from 1.
const shareTolerance = 1e-6

// Variant is one competing treatment.
type Variant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TrafficShare float64   `json:"traffic_share"`
	Impressions  int64     `json:"impressions"`
	Conversions  int64     `json:"conversions"`
	Revenue      float64   `json:"revenue"`
	Creative     *Creative `json:"creative,omitempty"`
}

// ConversionRate is conversions per impression, 0 without impressions.
func (v Variant) ConversionRate() float64 {
	if v.Impressions == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.Impressions)
}

// RevenuePerImpression is revenue per impression, 0 without impressions.
func (v Variant) RevenuePerImpression() float64 {
	if v.Impressions == 0 {
		return 0
	}
	return v.Revenue / float64(v.Impressions)
}

// Experiment is an A/B test over an ordered set of variants. The first
// variant is the control.
type Experiment struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Variants        []Variant `json:"variants"`
	Status          Status    `json:"status"`
	ConfidenceLevel float64   `json:"confidence_level"`
	WinnerID        string    `json:"winner_id,omitempty"`
}

// Control returns the control variant.
func (e *Experiment) Control() Variant {
	return e.Variants[0]
}

// variantIndex returns the position of variant id, or -1.
func (e *Experiment) variantIndex(id string) int {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return i
		}
	}
	return -1
}

// Variant returns the variant with the given id.
func (e *Experiment) Variant(id string) (Variant, bool) {
	i := e.variantIndex(id)
	if i < 0 {
		return Variant{}, false
	}
	return e.Variants[i], true
}

// Clone returns a deep copy.
func (e *Experiment) Clone() *Experiment {
	c := *e
	c.Variants = make([]Variant, len(e.Variants))
	for i, v := range e.Variants {
		if v.Creative != nil {
			cr := *v.Creative
			v.Creative = &cr
		}
		c.Variants[i] = v
	}
	return &c
}

// Validate checks the structural invariants of the experiment.
func (e *Experiment) Validate() error {
	if e.ID == "" {
		return &InvariantError{Reason: "experiment id is empty"}
	}
	if len(e.Variants) < 2 {
		return &InvariantError{ExperimentID: e.ID, Reason: fmt.Sprintf("need at least 2 variants, got %d", len(e.Variants))}
	}
	if e.ConfidenceLevel <= 0 || e.ConfidenceLevel >= 1 {
		return &InvariantError{ExperimentID: e.ID, Reason: fmt.Sprintf("confidence level %v outside (0,1)", e.ConfidenceLevel)}
	}
	switch e.Status {
	case StatusRunning, StatusCompleted, StatusArchived:
	default:
		return &InvariantError{ExperimentID: e.ID, Reason: fmt.Sprintf("unknown status %q", e.Status)}
	}

	seen := make(map[string]bool, len(e.Variants))
	sum := 0.0
	for _, v := range e.Variants {
		if v.ID == "" {
			return &InvariantError{ExperimentID: e.ID, Reason: "variant id is empty"}
		}
		if seen[v.ID] {
			return &InvariantError{ExperimentID: e.ID, Reason: fmt.Sprintf("duplicate variant id %q", v.ID)}
		}
		seen[v.ID] = true
		if v.TrafficShare <= 0 || v.TrafficShare > 1 {
			return &InvariantError{ExperimentID: e.ID, Reason: fmt.Sprintf("variant %q share %v outside (0,1]", v.ID, v.TrafficShare)}
		}
		if v.Impressions < 0 || v.Conversions < 0 || v.Revenue < 0 {
			return &InvariantError{ExperimentID: e.ID, Reason: fmt.Sprintf("variant %q has negative counters", v.ID)}
		}
		if v.Conversions > v.Impressions {
			return &InvariantError{ExperimentID: e.ID, Reason: fmt.Sprintf("variant %q has more conversions than impressions", v.ID)}
		}
		sum += v.TrafficShare
	}
	if math.Abs(sum-1) > shareTolerance {
		return &InvariantError{ExperimentID: e.ID, Reason: fmt.Sprintf("traffic shares sum to %v, want 1", sum)}
	}
	if e.WinnerID != "" && !seen[e.WinnerID] {
		return &InvariantError{ExperimentID: e.ID, Reason: fmt.Sprintf("winner %q is not a variant", e.WinnerID)}
	}
	return nil
}

// VariantSpec describes a variant to create.
type VariantSpec struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TrafficShare float64   `json:"traffic_share"`
	Creative     *Creative `json:"creative,omitempty"`
}

// CreateRequest describes a new experiment. The first variant is the control.
type CreateRequest struct {
	Name            string        `json:"name"`
	ConfidenceLevel float64       `json:"confidence_level"`
	Variants        []VariantSpec `json:"variants"`
}

// Result is the outcome of a winner query.
type Result struct {
	ExperimentID string       `json:"experiment_id"`
	Status       Status       `json:"status"`
	WinnerID     string       `json:"winner_id,omitempty"`
	Comparisons  []Comparison `json:"comparisons"`
}
