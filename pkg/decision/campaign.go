package decision

import (
	"fmt"

	"mercator-hq/cadence/pkg/customer"
)

const campaignConfidence = 0.88

// ActionExecuteCampaign is produced by Campaign when a template applies.
const ActionExecuteCampaign = "execute_campaign"

// triggerConditions decide whether a trigger applies to a record. Labels
// not listed never fire.
var triggerConditions = map[string]func(*customer.Record) bool{
	"cart_abandoned":     func(r *customer.Record) bool { return r.CartValue > 0 },
	"purchase_milestone": func(r *customer.Record) bool { return r.PurchaseCount%5 == 0 },
	"new_signup":         func(r *customer.Record) bool { return r.DaysSinceSignup < 1 },
	"lifecycle_change":   func(r *customer.Record) bool { return true },
	"win_back":           func(r *customer.Record) bool { return r.DaysSinceLastActivity > 90 },
}

var sendTimes = map[string]string{
	"morning":   "09:00",
	"afternoon": "14:00",
	"evening":   "19:00",
}

// Campaign picks a stage-appropriate template for a behavioral trigger.
type Campaign struct {
	b         builder
	templates map[customer.Stage][]Template
}

// NewCampaign creates the campaign policy using DefaultTemplates.
func NewCampaign(opts ...Option) *Campaign {
	return &Campaign{
		b:         builder{policy: PolicyCampaign, settings: newSettings(opts)},
		templates: DefaultTemplates,
	}
}

// Name implements Policy.
func (p *Campaign) Name() string { return PolicyCampaign }

// Decide implements Policy.
func (p *Campaign) Decide(rec *customer.Record, tc Context) Decision {
	cond, ok := triggerConditions[tc.Trigger]
	if !ok || !cond(rec) {
		return p.b.skip(rec, tc, "campaign", fmt.Sprintf("trigger %q conditions not met", tc.Trigger))
	}

	candidates := p.templates[rec.LifecycleStage]
	if len(candidates) == 0 {
		return p.b.skip(rec, tc, "campaign", fmt.Sprintf("no campaign template for stage %s", rec.LifecycleStage))
	}
	tmpl := candidates[0]

	d := p.b.decision(rec, tc, ActionExecuteCampaign, map[string]any{
		"campaign_name":   tmpl.Name,
		"send_time":       SendTime(rec),
		"cadence_days":    tmpl.CadenceDays,
		"lifecycle_stage": string(rec.LifecycleStage),
	})
	d.Channels = append([]string(nil), tmpl.Channels...)
	d.Copy = tmpl.copy()
	d.Confidence = campaignConfidence
	d.Rationale = fmt.Sprintf("Triggered by %s. Lifecycle stage: %s. Campaign: %s", tc.Trigger, rec.LifecycleStage, tmpl.Name)
	return d
}

// SendTime returns the preferred local send time for the record, e.g.
// "09:00 Europe/London".
func SendTime(rec *customer.Record) string {
	t, ok := sendTimes[rec.EngagementPattern]
	if !ok {
		t = "10:00"
	}
	tz := rec.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return t + " " + tz
}
