package decision

import (
	"fmt"

	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/experiment"
)

// Creative test eligibility and plan constants.
const (
	MinTestVolume          = 1000
	MinDaysBetweenTests    = 7
	unknownDaysSinceTest   = 999
	testTotalSampleSize    = 10000
	testDurationDays       = 7
	testConfidenceLevel    = 0.95
	creativeTestConfidence = 0.87
)

// ActionExecuteCreativeTest is produced by CreativeTest when eligible.
const ActionExecuteCreativeTest = "execute_creative_test"

// CreativeTest plans an A/B test of generated creative variants.
type CreativeTest struct {
	b            builder
	scorer       *experiment.Scorer
	controlShare float64
}

// NewCreativeTest creates the creative test policy. A nil scorer uses a
// scorer with seed 0.
func NewCreativeTest(scorer *experiment.Scorer, opts ...Option) *CreativeTest {
	if scorer == nil {
		scorer = experiment.NewScorer(0)
	}
	return &CreativeTest{
		b:            builder{policy: PolicyCreativeTest, settings: newSettings(opts)},
		scorer:       scorer,
		controlShare: experiment.DefaultControlShare,
	}
}

// Name implements Policy.
func (p *CreativeTest) Name() string { return PolicyCreativeTest }

// Decide implements Policy.
func (p *CreativeTest) Decide(rec *customer.Record, tc Context) Decision {
	if tc.ExpectedVolume < MinTestVolume {
		return p.b.skip(rec, tc, "creative_test",
			fmt.Sprintf("expected volume %d too low for significance (minimum %d)", tc.ExpectedVolume, MinTestVolume))
	}
	days := tc.DaysSinceLastTest
	if days == 0 {
		days = unknownDaysSinceTest
	}
	if days < MinDaysBetweenTests {
		return p.b.skip(rec, tc, "creative_test",
			fmt.Sprintf("campaign tested %d days ago, cooling period is %d days", days, MinDaysBetweenTests))
	}

	campaignID := tc.CampaignID
	if campaignID == "" {
		campaignID = "unknown"
	}

	base := experiment.Creative{}
	if tc.Creative != nil {
		base = *tc.Creative
	}
	ranked := p.scorer.Score(campaignID, experiment.Generate(base))
	plan, err := experiment.Allocate(ranked, p.controlShare)
	if err != nil {
		return p.b.skip(rec, tc, "creative_test", err.Error())
	}

	variants := make([]map[string]any, len(plan))
	for i, v := range plan {
		variants[i] = map[string]any{
			"name":          v.Name,
			"strategy":      string(v.Strategy),
			"subject":       v.Creative.Subject,
			"body":          v.Creative.Body,
			"cta":           v.Creative.CTA,
			"score":         v.Score,
			"traffic_share": v.TrafficShare,
		}
	}

	control := plan[0].Creative
	d := p.b.decision(rec, tc, ActionExecuteCreativeTest, map[string]any{
		"campaign_id":          campaignID,
		"variants":             variants,
		"total_sample_size":    testTotalSampleSize,
		"test_duration_days":   testDurationDays,
		"confidence_threshold": testConfidenceLevel,
	})
	d.Channels = []string{"email"}
	d.Copy = &control
	d.Confidence = creativeTestConfidence
	d.Rationale = fmt.Sprintf("Launching creative test with %d variations. Sample size: %d", len(plan), testTotalSampleSize)
	return d
}

// Plan rebuilds the experiment variant specs from a creative test decision.
func Plan(d Decision) ([]experiment.VariantSpec, bool) {
	raw, ok := d.Parameters["variants"].([]map[string]any)
	if !ok || len(raw) == 0 {
		return nil, false
	}

	specs := make([]experiment.VariantSpec, len(raw))
	for i, v := range raw {
		id, _ := v["strategy"].(string)
		if i == 0 {
			id = experiment.ControlID
		}
		name, _ := v["name"].(string)
		share, _ := v["traffic_share"].(float64)
		subject, _ := v["subject"].(string)
		body, _ := v["body"].(string)
		cta, _ := v["cta"].(string)
		specs[i] = experiment.VariantSpec{
			ID:           id,
			Name:         name,
			TrafficShare: share,
			Creative:     &experiment.Creative{Subject: subject, Body: body, CTA: cta},
		}
	}
	return specs, true
}
