package customer

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Stage is a customer lifecycle stage.
type Stage string

// Lifecycle stages.
const (
	StageNew     Stage = "new"
	StageActive  Stage = "active"
	StageAtRisk  Stage = "at_risk"
	StageChurned Stage = "churned"
)

// DefaultRegion is assumed when a record carries no region.
const DefaultRegion = "EU"

// UnknownDays stands in for a day count the source did not report. It is
// old enough that no recency rule matches.
const UnknownDays = 999

// DefaultMessageType is assumed when a record carries no message type.
const DefaultMessageType = "marketing"

// Consent holds the consent flags collected for a customer.
type Consent struct {
	// GDPR is true when the customer granted marketing consent under GDPR.
	GDPR bool `yaml:"gdpr" json:"gdpr"`

	// WhatsApp is true when the customer opted in to WhatsApp messages.
	WhatsApp bool `yaml:"whatsapp" json:"whatsapp"`

	// EmailUnsubscribed is true when the customer opted out of marketing e-mail.
	EmailUnsubscribed bool `yaml:"email_unsubscribed" json:"email_unsubscribed"`
}

// Record is an enriched customer record. The core consumes it read-only.
type Record struct {
	ID        string `yaml:"id" json:"id"`
	FirstName string `yaml:"first_name" json:"first_name"`
	Email     string `yaml:"email" json:"email"`
	Phone     string `yaml:"phone" json:"phone,omitempty"`

	// Region is a compliance region code such as "EU" or "US".
	Region   string `yaml:"region" json:"region"`
	Timezone string `yaml:"timezone" json:"timezone"`

	// EngagementPattern is the preferred time of day: morning, afternoon or evening.
	EngagementPattern string `yaml:"engagement_pattern" json:"engagement_pattern"`

	LifecycleStage  Stage   `yaml:"lifecycle_stage" json:"lifecycle_stage"`
	ChurnRisk       float64 `yaml:"churn_risk" json:"churn_risk"`
	EngagementScore float64 `yaml:"engagement_score" json:"engagement_score"`

	CustomerValue float64  `yaml:"customer_value" json:"customer_value"`
	CartValue     float64  `yaml:"cart_value" json:"cart_value"`
	CartItems     []string `yaml:"cart_items" json:"cart_items,omitempty"`

	PurchaseCount         int `yaml:"purchase_count" json:"purchase_count"`
	DaysSinceSignup       int `yaml:"days_since_signup" json:"days_since_signup"`
	DaysSinceLastActivity int `yaml:"days_since_last_activity" json:"days_since_last_activity"`
	PurchaseFrequencyDays int `yaml:"purchase_frequency_days" json:"purchase_frequency_days"`

	VIP     bool    `yaml:"vip" json:"vip"`
	Consent Consent `yaml:"consent" json:"consent"`

	// MessagesThisPeriod is the number of messages already sent in the
	// current frequency-cap period, as reported by the upstream source.
	MessagesThisPeriod int    `yaml:"messages_this_period" json:"messages_this_period"`
	MessageType        string `yaml:"message_type" json:"message_type"`
}

// UnmarshalYAML decodes a record. Missing days_since_signup and
// purchase_frequency_days read as UnknownDays, not zero.
func (r *Record) UnmarshalYAML(node *yaml.Node) error {
	type plain Record
	p := plain{DaysSinceSignup: UnknownDays, PurchaseFrequencyDays: UnknownDays}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = Record(p)
	return nil
}

// Normalize clamps scores to [0,1] and monetary values and counters to
// non-negative values, and fills in region, timezone and message type
// defaults. It returns the receiver for chaining.
func (r *Record) Normalize() *Record {
	r.ChurnRisk = clampUnit(r.ChurnRisk)
	r.EngagementScore = clampUnit(r.EngagementScore)
	r.CustomerValue = max(r.CustomerValue, 0)
	r.CartValue = max(r.CartValue, 0)
	r.PurchaseCount = max(r.PurchaseCount, 0)
	r.DaysSinceSignup = max(r.DaysSinceSignup, 0)
	r.DaysSinceLastActivity = max(r.DaysSinceLastActivity, 0)
	r.PurchaseFrequencyDays = max(r.PurchaseFrequencyDays, 0)
	r.MessagesThisPeriod = max(r.MessagesThisPeriod, 0)

	r.Region = strings.ToUpper(strings.TrimSpace(r.Region))
	if r.Region == "" {
		r.Region = DefaultRegion
	}
	if r.Timezone == "" {
		r.Timezone = "UTC"
	}
	if r.MessageType == "" {
		r.MessageType = DefaultMessageType
	}
	if r.LifecycleStage == "" {
		r.LifecycleStage = StageActive
	}
	return r
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.CartItems != nil {
		c.CartItems = append([]string(nil), r.CartItems...)
	}
	return &c
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}
