package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/cadence/pkg/decision"
)

// Ledger is the append-only audit trail of decisions and overrides.
// Appends are serialized so Seq and the hash chain stay monotonic under
// concurrent pipeline runs.
type Ledger struct {
	mu      sync.Mutex
	storage Storage
	last    *Entry
	loaded  bool

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// New creates a ledger over storage. A nil storage uses MemoryStorage.
func New(storage Storage, opts ...Option) *Ledger {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	l := &Ledger{
		storage: storage,
		now:     time.Now,
		newID:   func() string { return "led_" + uuid.NewString() },
		logger:  slog.Default().With("component", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records a decision snapshot with its guardrail pass/fail map and
// human-review flag. The decision is deep-copied, so later changes by the
// caller do not alter the entry.
func (l *Ledger) Append(ctx context.Context, d decision.Decision, checks map[string]bool, humanReview bool) (*Entry, error) {
	snapshot := d.Clone()
	guardrails := make(map[string]bool, len(checks))
	for k, v := range checks {
		guardrails[k] = v
	}

	entry := &Entry{
		Kind:        KindDecision,
		CustomerID:  d.CustomerID,
		DecisionID:  d.ID,
		Decision:    &snapshot,
		Guardrails:  guardrails,
		HumanReview: humanReview,
	}
	if err := l.append(ctx, entry); err != nil {
		return nil, err
	}

	l.logger.Debug("decision recorded",
		"seq", entry.Seq,
		"decision_id", d.ID,
		"customer_id", d.CustomerID,
		"action", d.Action,
	)
	return entry.clone(), nil
}

// AppendOverride records a human override of a previously appended
// decision. originalAction defaults to the recorded action when empty.
// It returns ErrNotFound if the decision was never appended.
func (l *Ledger) AppendOverride(ctx context.Context, decisionID, originalAction, overrideAction, reason string) (*Entry, error) {
	if strings.TrimSpace(overrideAction) == "" || strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: override action and reason are required", ErrInvalidOverride)
	}

	found, err := l.storage.Query(ctx, &Query{DecisionID: decisionID, Kind: KindDecision, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, decisionID)
	}
	original := found[0]
	if originalAction == "" && original.Decision != nil {
		originalAction = original.Decision.Action
	}

	entry := &Entry{
		Kind:       KindOverride,
		CustomerID: original.CustomerID,
		DecisionID: decisionID,
		Override: &Override{
			DecisionID:     decisionID,
			OriginalAction: originalAction,
			OverrideAction: overrideAction,
			Reason:         reason,
		},
	}
	if err := l.append(ctx, entry); err != nil {
		return nil, err
	}

	l.logger.Info("decision overridden",
		"seq", entry.Seq,
		"decision_id", decisionID,
		"original_action", originalAction,
		"override_action", overrideAction,
	)
	return entry.clone(), nil
}

func (l *Ledger) append(ctx context.Context, entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		last, err := l.storage.Last(ctx)
		if err != nil {
			return err
		}
		l.last = last
		l.loaded = true
	}

	entry.ID = l.newID()
	entry.Timestamp = l.now().UTC()
	entry.Seq = 1
	if l.last != nil {
		entry.Seq = l.last.Seq + 1
		entry.PrevHash = l.last.Hash
	}

	hash, err := entry.computeHash()
	if err != nil {
		return NewStorageError("ledger", "hash", err)
	}
	entry.Hash = hash

	if err := l.storage.Append(ctx, entry); err != nil {
		return err
	}
	l.last = entry.clone()
	return nil
}

// History returns up to limit entries, newest first, optionally for one
// customer. A limit of zero or less returns every matching entry.
func (l *Ledger) History(ctx context.Context, customerID string, limit int) ([]*Entry, error) {
	if limit < 0 {
		limit = 0
	}
	return l.storage.Query(ctx, &Query{CustomerID: customerID, Limit: limit})
}

// Entries returns entries matching q.
func (l *Ledger) Entries(ctx context.Context, q *Query) ([]*Entry, error) {
	return l.storage.Query(ctx, q)
}

// Len returns the number of entries.
func (l *Ledger) Len(ctx context.Context) (int64, error) {
	return l.storage.Count(ctx)
}

// Verify walks the ledger oldest first, recomputing every hash and checking
// the chain links. It returns the number of entries verified, or an
// *IntegrityError at the first broken link.
func (l *Ledger) Verify(ctx context.Context) (int64, error) {
	entries, err := l.storage.Query(ctx, &Query{Ascending: true})
	if err != nil {
		return 0, err
	}

	var (
		prevHash string
		prevSeq  int64
	)
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return int64(i), err
		}
		if e.Seq <= prevSeq {
			return int64(i), &IntegrityError{Seq: e.Seq, Reason: fmt.Sprintf("seq not after %d", prevSeq)}
		}
		if e.PrevHash != prevHash {
			return int64(i), &IntegrityError{Seq: e.Seq, Reason: "previous hash does not match"}
		}
		want, err := e.computeHash()
		if err != nil {
			return int64(i), NewStorageError("ledger", "hash", err)
		}
		if want != e.Hash {
			return int64(i), &IntegrityError{Seq: e.Seq, Reason: "entry hash does not match contents"}
		}
		prevHash, prevSeq = e.Hash, e.Seq
	}
	return int64(len(entries)), nil
}

// Close closes the underlying storage.
func (l *Ledger) Close() error {
	return l.storage.Close()
}
