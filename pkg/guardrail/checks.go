package guardrail

import (
	"math"
	"regexp"
	"slices"
	"strings"

	"mercator-hq/cadence/pkg/customer"
)

// Counter reports how many messages of a type were sent to a customer in
// the current period.
type Counter interface {
	Count(customerID, messageType string) int
}

// FrequencyCap passes while the period count is below the cap for the
// message type. Unknown types use the "marketing" cap.
type FrequencyCap struct {
	Caps map[string]int

	// Counter is optional. When set, the larger of its count and the
	// record's count is used.
	Counter Counter
}

// Name implements Checker.
func (f *FrequencyCap) Name() string { return CheckFrequencyCap }

// Check implements Checker.
func (f *FrequencyCap) Check(rec *customer.Record, c *Content) Check {
	msgType := c.MessageType
	if msgType == "" {
		msgType = rec.MessageType
	}
	if msgType == "" {
		msgType = customer.DefaultMessageType
	}
	limit, ok := f.Caps[msgType]
	if !ok {
		limit = f.Caps[customer.DefaultMessageType]
	}

	count := rec.MessagesThisPeriod
	if f.Counter != nil {
		count = max(count, f.Counter.Count(rec.ID, msgType))
	}

	passed := count < limit
	return Check{
		Name:     CheckFrequencyCap,
		Passed:   passed,
		Severity: failSeverity(passed),
		Details: map[string]any{
			"message_type": msgType,
			"count":        count,
			"limit":        limit,
		},
	}
}

var (
	uppercaseRun   = regexp.MustCompile(`[A-Z]{3,}`)
	exclamationRun = regexp.MustCompile(`!{2,}`)
)

// SpamScore counts spam keyword hits plus structural heuristics and
// normalizes by Divisor.
type SpamScore struct {
	Keywords  []string
	Divisor   float64
	Threshold float64
}

// Name implements Checker.
func (s *SpamScore) Name() string { return CheckSpamScore }

// Check implements Checker.
func (s *SpamScore) Check(rec *customer.Record, c *Content) Check {
	text := strings.ToLower(c.Subject + " " + c.Body)

	var hits []string
	for _, kw := range s.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			hits = append(hits, kw)
		}
	}
	triggers := len(hits)

	shouting := len(uppercaseRun.FindAllString(c.Subject, -1)) > 2
	if shouting {
		triggers++
	}
	exclaiming := len(exclamationRun.FindAllString(text, -1)) > 1
	if exclaiming {
		triggers++
	}

	divisor := s.Divisor
	if divisor <= 0 {
		divisor = 5
	}
	score := math.Min(float64(triggers)/divisor, 1)
	passed := score < s.Threshold

	return Check{
		Name:     CheckSpamScore,
		Passed:   passed,
		Severity: failSeverity(passed),
		Details: map[string]any{
			"spam_score":      math.Round(score*1000) / 1000,
			"threshold":       s.Threshold,
			"triggers":        triggers,
			"keywords":        hits,
			"excessive_caps":  shouting,
			"excessive_punct": exclaiming,
		},
	}
}

// MinEngagement passes when the engagement score reaches Floor.
type MinEngagement struct {
	Floor float64
}

// Name implements Checker.
func (m *MinEngagement) Name() string { return CheckMinEngagement }

// Check implements Checker.
func (m *MinEngagement) Check(rec *customer.Record, c *Content) Check {
	passed := rec.EngagementScore >= m.Floor
	return Check{
		Name:     CheckMinEngagement,
		Passed:   passed,
		Severity: failSeverity(passed),
		Details: map[string]any{
			"engagement_score": rec.EngagementScore,
			"minimum":          m.Floor,
		},
	}
}

// Consent passes unconditionally outside regulated regions. Inside them it
// requires GDPR consent, and a failure is critical.
type Consent struct {
	RegulatedRegions []string
}

// Name implements Checker.
func (g *Consent) Name() string { return CheckConsent }

// Check implements Checker.
func (g *Consent) Check(rec *customer.Record, c *Content) Check {
	region := strings.ToUpper(rec.Region)
	if region == "" {
		region = customer.DefaultRegion
	}
	regulated := slices.ContainsFunc(g.RegulatedRegions, func(r string) bool {
		return strings.EqualFold(r, region)
	})

	passed := !regulated || rec.Consent.GDPR
	severity := SeverityWarning
	if !passed {
		severity = SeverityCritical
	}
	return Check{
		Name:     CheckConsent,
		Passed:   passed,
		Severity: severity,
		Details: map[string]any{
			"region":        region,
			"regulated":     regulated,
			"consent_given": rec.Consent.GDPR,
		},
	}
}

// Disclosure requires sender identity, an unsubscribe mechanism and a
// physical address. Any missing element is critical.
type Disclosure struct{}

// Name implements Checker.
func (Disclosure) Name() string { return CheckDisclosure }

// Check implements Checker.
func (Disclosure) Check(rec *customer.Record, c *Content) Check {
	var missing []string
	if strings.TrimSpace(c.FromAddress) == "" {
		missing = append(missing, "from_address")
	}
	if strings.TrimSpace(c.UnsubscribeLink) == "" {
		missing = append(missing, "unsubscribe_link")
	}
	if strings.TrimSpace(c.PhysicalAddress) == "" {
		missing = append(missing, "physical_address")
	}

	passed := len(missing) == 0
	severity := SeverityWarning
	if !passed {
		severity = SeverityCritical
	}
	return Check{
		Name:     CheckDisclosure,
		Passed:   passed,
		Severity: severity,
		Details:  map[string]any{"missing_elements": missing},
	}
}

// Tone scores brand voice. The score starts at 1, loses ForbiddenPenalty
// per forbidden word found and MarkerPenalty when no required marker is
// present.
type Tone struct {
	Forbidden        []string
	RequiredMarkers  []string
	ForbiddenPenalty float64
	MarkerPenalty    float64
	Threshold        float64
}

// Name implements Checker.
func (t *Tone) Name() string { return CheckTone }

// Check implements Checker.
func (t *Tone) Check(rec *customer.Record, c *Content) Check {
	text := strings.ToLower(c.Subject + " " + c.Body + " " + c.CTA)
	score := 1.0

	var found []string
	for _, w := range t.Forbidden {
		if strings.Contains(text, strings.ToLower(w)) {
			found = append(found, w)
			score -= t.ForbiddenPenalty
		}
	}

	hasMarker := slices.ContainsFunc(t.RequiredMarkers, func(m string) bool {
		return strings.Contains(text, strings.ToLower(m))
	})
	if len(t.RequiredMarkers) > 0 && !hasMarker {
		score -= t.MarkerPenalty
	}
	score = math.Max(score, 0)

	passed := score >= t.Threshold
	return Check{
		Name:     CheckTone,
		Passed:   passed,
		Severity: failSeverity(passed),
		Details: map[string]any{
			"tone_score":       math.Round(score*1000) / 1000,
			"threshold":        t.Threshold,
			"forbidden_found":  found,
			"required_present": hasMarker,
		},
	}
}

// Personalization passes when the content carries a personalization
// placeholder or a dynamic-content marker. It never blocks.
type Personalization struct {
	Markers []string
}

// DefaultPersonalizationMarkers are the placeholders and dynamic-content
// markers recognized by Personalization.
var DefaultPersonalizationMarkers = []string{"{{first_name}}", "{first_name}", "{{", "{%", "dynamic", "personalized"}

// Name implements Checker.
func (p *Personalization) Name() string { return CheckPersonalization }

// Check implements Checker.
func (p *Personalization) Check(rec *customer.Record, c *Content) Check {
	text := strings.ToLower(c.Subject + " " + c.Body)
	markers := p.Markers
	if len(markers) == 0 {
		markers = DefaultPersonalizationMarkers
	}

	var found []string
	for _, m := range markers {
		if strings.Contains(text, strings.ToLower(m)) {
			found = append(found, m)
		}
	}

	return Check{
		Name:     CheckPersonalization,
		Passed:   len(found) > 0,
		Severity: SeverityWarning,
		Details:  map[string]any{"markers_found": found},
	}
}
