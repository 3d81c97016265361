package decision

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/cadence/pkg/customer"
)

// skipConfidence is the confidence attached to every skip decision.
const skipConfidence = 0.9

type settings struct {
	now   func() time.Time
	newID func() string
}

// Option configures policy construction.
type Option func(*settings)

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIDGenerator overrides decision id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *settings) { s.newID = fn }
}

func newSettings(opts []Option) settings {
	s := settings{
		now:   time.Now,
		newID: func() string { return "dec_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// builder stamps decisions with id, policy name and timestamp.
type builder struct {
	policy string
	settings
}

func (b builder) decision(rec *customer.Record, tc Context, action string, params map[string]any) Decision {
	if params == nil {
		params = map[string]any{}
	}
	return Decision{
		ID:         b.newID(),
		Policy:     b.policy,
		CustomerID: rec.ID,
		Trigger:    tc.Trigger,
		Action:     action,
		Parameters: params,
		CreatedAt:  b.now().UTC(),
	}
}

func (b builder) skip(rec *customer.Record, tc Context, skipped, reason string) Decision {
	d := b.decision(rec, tc, ActionSkip, map[string]any{
		"skipped": skipped,
		"reason":  reason,
	})
	d.Confidence = skipConfidence
	d.Rationale = reason
	return d
}

// lastN returns the last n characters of s.
func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func code(prefix, customerID, suffix string) string {
	return strings.ToUpper(fmt.Sprintf("%s%s%s", prefix, lastN(customerID, 4), suffix))
}
