package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"mercator-hq/cadence/pkg/decision"
)

// Kind distinguishes decision entries from human overrides.
type Kind string

// Entry kinds.
const (
	KindDecision Kind = "decision"
	KindOverride Kind = "override"
)

// Entry is one immutable ledger record. Seq is assigned on append and is
// strictly increasing; Hash chains each entry to its predecessor.
type Entry struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Kind       Kind      `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	CustomerID string    `json:"customer_id"`
	DecisionID string    `json:"decision_id"`

	// Decision is a snapshot taken at append time. Nil for overrides.
	Decision *decision.Decision `json:"decision,omitempty"`

	// Guardrails maps check name to its passed flag.
	Guardrails map[string]bool `json:"guardrails,omitempty"`

	HumanReview bool `json:"human_review"`

	// Override is set only for override entries.
	Override *Override `json:"override,omitempty"`

	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// Override records a human replacing a decision's action.
type Override struct {
	DecisionID     string `json:"decision_id"`
	OriginalAction string `json:"original_action"`
	OverrideAction string `json:"override_action"`
	Reason         string `json:"reason"`
}

// GuardrailsPassed reports whether every recorded check passed.
func (e *Entry) GuardrailsPassed() bool {
	for _, ok := range e.Guardrails {
		if !ok {
			return false
		}
	}
	return true
}

// computeHash returns the hex SHA-256 of the entry's JSON form with Hash
// cleared.
func (e *Entry) computeHash() (string, error) {
	c := *e
	c.Hash = ""
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Query filters ledger reads.
type Query struct {
	CustomerID string
	DecisionID string
	Kind       Kind

	// Limit caps the number of entries returned. Zero means no limit.
	Limit int

	// Ascending returns oldest first. The default is newest first.
	Ascending bool
}

// Storage persists ledger entries. Implementations must be safe for
// concurrent use and offer no way to modify or remove an entry.
type Storage interface {
	// Append stores an entry. Seq must exceed every stored Seq.
	Append(ctx context.Context, entry *Entry) error

	// Last returns the entry with the highest Seq, or nil when empty.
	Last(ctx context.Context) (*Entry, error)

	// Query returns matching entries ordered by Seq.
	Query(ctx context.Context, q *Query) ([]*Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int64, error)

	Close() error
}

// Exporter writes entries in a serialized format.
type Exporter interface {
	Export(ctx context.Context, entries []*Entry, w io.Writer) error
}
