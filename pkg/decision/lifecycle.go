package decision

import (
	"fmt"

	"mercator-hq/cadence/pkg/customer"
)

// Lifecycle review thresholds. Not configurable.
const (
	LifecycleRiskReviewThreshold  = 0.7
	LifecycleValueReviewThreshold = 5000.0
	lifecycleConfidence           = 0.86
)

// Actions produced by Lifecycle.
const (
	ActionTriggerOnboarding         = "trigger_onboarding"
	ActionTriggerEngagementCampaign = "trigger_engagement_campaign"
	ActionTrackEngagement           = "track_engagement"
	ActionTriggerRetentionCampaign  = "trigger_retention_campaign"
	ActionTriggerWinbackCampaign    = "trigger_winback_campaign"
)

// Lifecycle scores churn risk, places the customer in a lifecycle stage and
// picks the matching retention action.
type Lifecycle struct {
	b builder
}

// NewLifecycle creates the lifecycle policy.
func NewLifecycle(opts ...Option) *Lifecycle {
	return &Lifecycle{b: builder{policy: PolicyLifecycle, settings: newSettings(opts)}}
}

// Name implements Policy.
func (p *Lifecycle) Name() string { return PolicyLifecycle }

// ChurnRisk scores churn risk in [0,1] from inactivity, purchase interval,
// engagement and value.
func ChurnRisk(rec *customer.Record) float64 {
	risk := 0.0

	switch {
	case rec.DaysSinceLastActivity > 180:
		risk += 0.4
	case rec.DaysSinceLastActivity > 90:
		risk += 0.2
	}

	switch {
	case rec.PurchaseFrequencyDays > 120:
		risk += 0.2
	case rec.PurchaseFrequencyDays > 60:
		risk += 0.1
	}

	switch {
	case rec.EngagementScore < 0.2:
		risk += 0.25
	case rec.EngagementScore < 0.5:
		risk += 0.1
	}

	switch {
	case rec.CustomerValue < 200:
		risk += 0.1
	case rec.CustomerValue < 500:
		risk += 0.05
	}

	return min(risk, 1)
}

// Stage derives the lifecycle stage from signup age, churn risk and
// inactivity, in that order of precedence.
func Stage(rec *customer.Record, risk float64) customer.Stage {
	switch {
	case rec.DaysSinceSignup < 30:
		return customer.StageNew
	case risk > 0.6:
		return customer.StageAtRisk
	case rec.DaysSinceLastActivity > 180:
		return customer.StageChurned
	default:
		return customer.StageActive
	}
}

// Decide implements Policy.
func (p *Lifecycle) Decide(rec *customer.Record, tc Context) Decision {
	if rec.Consent.EmailUnsubscribed {
		return p.b.skip(rec, tc, "lifecycle", "customer unsubscribed from marketing e-mail")
	}

	risk := ChurnRisk(rec)
	stage := Stage(rec, risk)

	var action string
	switch stage {
	case customer.StageNew:
		action = ActionTriggerOnboarding
	case customer.StageAtRisk:
		action = ActionTriggerRetentionCampaign
	case customer.StageChurned:
		action = ActionTriggerWinbackCampaign
	default:
		action = ActionTrackEngagement
		if risk > 0.3 {
			action = ActionTriggerEngagementCampaign
		}
	}

	vipEscalation := rec.CustomerValue > LifecycleValueReviewThreshold
	d := p.b.decision(rec, tc, action, map[string]any{
		"churn_risk":              risk,
		"lifecycle_stage":         string(stage),
		"previous_stage":          string(rec.LifecycleStage),
		"escalate_to_vip_support": vipEscalation,
	})

	if action != ActionTrackEngagement {
		tmpl := lifecycleTemplate(stage)
		d.Channels = append([]string(nil), tmpl.Channels...)
		d.Copy = tmpl.copy()
		d.Parameters["template"] = tmpl.Name
	}

	d.Confidence = lifecycleConfidence
	d.RequiresHumanReview = risk > LifecycleRiskReviewThreshold || vipEscalation
	d.Rationale = fmt.Sprintf("Churn risk %.2f, stage %s", risk, stage)
	return d
}

// lifecycleTemplate returns the template used for a stage's outreach.
// Churned customers reuse the at-risk win-back template.
func lifecycleTemplate(stage customer.Stage) Template {
	if stage == customer.StageChurned {
		stage = customer.StageAtRisk
	}
	return DefaultTemplates[stage][0]
}
