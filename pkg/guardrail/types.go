package guardrail

import (
	"sort"

	"mercator-hq/cadence/pkg/customer"
)

// Severity grades a check result. Only critical failures block dispatch.
type Severity string

// Severities.
const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Check names.
const (
	CheckFrequencyCap    = "frequency_cap"
	CheckSpamScore       = "spam_score"
	CheckMinEngagement   = "min_engagement"
	CheckConsent         = "consent"
	CheckDisclosure      = "disclosure"
	CheckTone            = "tone_consistency"
	CheckPersonalization = "personalization"
)

// Check is the result of one guardrail against one piece of content.
type Check struct {
	Name     string         `json:"name"`
	Passed   bool           `json:"passed"`
	Severity Severity       `json:"severity"`
	Details  map[string]any `json:"details,omitempty"`
}

// Blocks reports whether the result blocks dispatch.
func (c Check) Blocks() bool {
	return !c.Passed && c.Severity == SeverityCritical
}

// Content is the rendered message the gate evaluates, together with the
// compliance fields that travel outside the body.
type Content struct {
	Subject         string `json:"subject"`
	Body            string `json:"body"`
	CTA             string `json:"cta"`
	FromAddress     string `json:"from_address"`
	UnsubscribeLink string `json:"unsubscribe_link"`
	PhysicalAddress string `json:"physical_address"`

	// MessageType selects the frequency cap, e.g. "marketing".
	MessageType string `json:"message_type"`
}

// Checker is one independent guardrail. Implementations must not keep
// mutable state between calls.
type Checker interface {
	Name() string
	Check(rec *customer.Record, c *Content) Check
}

// Outcome is the aggregated result of a gate evaluation.
type Outcome struct {
	Passed bool             `json:"passed"`
	Checks map[string]Check `json:"checks"`
}

// Aggregate applies the gate rule: the outcome passes iff every check
// passed or is not critical.
func Aggregate(checks map[string]Check) bool {
	for _, c := range checks {
		if c.Blocks() {
			return false
		}
	}
	return true
}

// Blocking returns the sorted names of the checks that blocked dispatch.
func (o Outcome) Blocking() []string {
	var names []string
	for name, c := range o.Checks {
		if c.Blocks() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Failed returns the sorted names of all failed checks, blocking or not.
func (o Outcome) Failed() []string {
	var names []string
	for name, c := range o.Checks {
		if !c.Passed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// PassMap returns check name to passed.
func (o Outcome) PassMap() map[string]bool {
	m := make(map[string]bool, len(o.Checks))
	for name, c := range o.Checks {
		m[name] = c.Passed
	}
	return m
}

// failSeverity returns SeverityError for a failure and SeverityWarning
// otherwise.
func failSeverity(passed bool) Severity {
	if passed {
		return SeverityWarning
	}
	return SeverityError
}
