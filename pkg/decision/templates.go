package decision

import (
	"strings"

	"mercator-hq/cadence/pkg/customer"
)

// Template is a campaign template. Subject and Body keep their placeholders.
type Template struct {
	Name     string
	Channels []string
	Subject  string
	Body     string
	// CadenceDays is the minimum number of days between repeats.
	CadenceDays int
}

func (t Template) copy() *Copy {
	cta := "Learn More"
	if strings.Contains(strings.ToLower(t.Name), "cart") {
		cta = "Shop Now"
	}
	return &Copy{Subject: t.Subject, Body: t.Body, CTA: cta}
}

// DefaultTemplates is the campaign library keyed by lifecycle stage, in
// preference order. Churned customers have no campaign.
var DefaultTemplates = map[customer.Stage][]Template{
	customer.StageNew: {
		{
			Name:        "Welcome Series",
			Channels:    []string{"email", "web"},
			Subject:     "Welcome to {{brand_name}}, {{first_name}}!",
			Body:        "We're excited to have you, {{first_name}}. Here are a few resources to get started with {{brand_name}}.",
			CadenceDays: 7,
		},
		{
			Name:        "Feature Education",
			Channels:    []string{"email"},
			Subject:     "Here's how to get the most from {{brand_name}}",
			Body:        "Learn how to get the most from {{brand_name}} with these quick tips.",
			CadenceDays: 3,
		},
	},
	customer.StageActive: {
		{
			Name:        "Engagement Booster",
			Channels:    []string{"email", "push"},
			Subject:     "{{first_name}}, exclusive offer inside",
			Body:        "We have something special for you, {{first_name}}.",
			CadenceDays: 14,
		},
		{
			Name:        "Upsell Opportunity",
			Channels:    []string{"email", "web"},
			Subject:     "Customers like you love this at {{brand_name}}",
			Body:        "Based on your interests, we think you'll love this.",
			CadenceDays: 30,
		},
	},
	customer.StageAtRisk: {
		{
			Name:        "Win-Back Special",
			Channels:    []string{"email", "sms"},
			Subject:     "We miss you {{first_name}} - 20% off inside",
			Body:        "Come back to {{brand_name}} and enjoy 20% off your next purchase.",
			CadenceDays: 7,
		},
	},
}
