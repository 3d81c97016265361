package decision

import (
	"time"

	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/experiment"
)

// ActionSkip is returned by every policy when the customer is not eligible.
const ActionSkip = "skip"

// Policy names.
const (
	PolicyCampaign     = "campaign"
	PolicyLifecycle    = "lifecycle"
	PolicyCreativeTest = "creative_test"
	PolicyCartWinback  = "cart_winback"
)

// Copy is the message copy attached to a sending decision. Placeholders
// such as {{first_name}} are kept and resolved at dispatch time.
type Copy = experiment.Creative

// Decision is the single action proposed by a policy for one trigger.
// Decisions are values; use Clone before handing one to code that may
// mutate Parameters.
type Decision struct {
	ID         string         `json:"id"`
	Policy     string         `json:"policy"`
	CustomerID string         `json:"customer_id"`
	Trigger    string         `json:"trigger"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`

	// Channels lists the delivery channels for the action, in order.
	Channels []string `json:"channels"`

	// Copy is nil for actions that send nothing.
	Copy *Copy `json:"copy,omitempty"`

	Confidence          float64   `json:"confidence"`
	RequiresHumanReview bool      `json:"requires_human_review"`
	Rationale           string    `json:"rationale"`
	CreatedAt           time.Time `json:"created_at"`
}

// Skipped reports whether the decision is a skip.
func (d Decision) Skipped() bool {
	return d.Action == ActionSkip
}

// Clone returns a deep copy.
func (d Decision) Clone() Decision {
	c := d
	c.Parameters = cloneMap(d.Parameters)
	if d.Channels != nil {
		c.Channels = append([]string(nil), d.Channels...)
	}
	if d.Copy != nil {
		cp := *d.Copy
		c.Copy = &cp
	}
	return c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i := range t {
			out[i] = cloneMap(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Context is the trigger context handed to a policy.
type Context struct {
	// Trigger is the routing label, e.g. "cart_abandoned".
	Trigger string `json:"trigger"`

	CampaignID     string `json:"campaign_id,omitempty"`
	ExpectedVolume int    `json:"expected_volume,omitempty"`

	// DaysSinceLastTest is the cooling period since the campaign's previous
	// creative test. Zero means unknown.
	DaysSinceLastTest int `json:"days_since_last_test,omitempty"`

	// Creative is the baseline copy for creative tests.
	Creative *experiment.Creative `json:"creative,omitempty"`
}

// Policy proposes a decision for a customer and trigger. Decide must not
// fail for a valid record: ineligible input yields a skip decision.
type Policy interface {
	Name() string
	Decide(rec *customer.Record, tc Context) Decision
}
