package guardrail

import (
	"context"
	"reflect"
	"testing"

	"mercator-hq/cadence/pkg/customer"
)

func goodContent() *Content {
	return &Content{
		Subject:         "{{first_name}}, your cart is waiting",
		Body:            "Complete your order at {{brand_name}} and save 20%.",
		CTA:             "Shop Now",
		FromAddress:     "noreply@yourbrand.com",
		UnsubscribeLink: "https://yourbrand.com/unsubscribe",
		PhysicalAddress: "123 Main St, City, Country",
		MessageType:     "marketing",
	}
}

func goodRecord() *customer.Record {
	return (&customer.Record{
		ID:              "cust_003",
		Region:          "EU",
		EngagementScore: 0.8,
		Consent:         customer.Consent{GDPR: true},
	}).Normalize()
}

func TestChecks(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		checker  Checker
		rec      func(r *customer.Record)
		content  func(c *Content)
		passed   bool
		severity Severity
	}{
		{"frequency under cap", &FrequencyCap{Caps: th.FrequencyCaps}, func(r *customer.Record) { r.MessagesThisPeriod = 2 }, nil, true, SeverityWarning},
		{"frequency at cap", &FrequencyCap{Caps: th.FrequencyCaps}, func(r *customer.Record) { r.MessagesThisPeriod = 3 }, nil, false, SeverityError},
		{"newsletter cap", &FrequencyCap{Caps: th.FrequencyCaps}, func(r *customer.Record) { r.MessagesThisPeriod = 1 }, func(c *Content) { c.MessageType = "newsletter" }, false, SeverityError},
		{"unknown type uses marketing cap", &FrequencyCap{Caps: th.FrequencyCaps}, func(r *customer.Record) { r.MessagesThisPeriod = 2 }, func(c *Content) { c.MessageType = "digest" }, true, SeverityWarning},
		{"counter exceeds record", &FrequencyCap{Caps: th.FrequencyCaps, Counter: fixedCounter(5)}, nil, nil, false, SeverityError},

		{"clean copy not spam", &SpamScore{Keywords: th.SpamKeywords, Divisor: 5, Threshold: 0.7}, nil, nil, true, SeverityWarning},
		{"spammy copy", &SpamScore{Keywords: th.SpamKeywords, Divisor: 5, Threshold: 0.7}, nil, func(c *Content) {
			c.Subject = "URGENT: FREE GIFT NOW!!"
			c.Body = "Act now!! Guaranteed, no credit card, risk free"
		}, false, SeverityError},

		{"engaged customer", &MinEngagement{Floor: 0.3}, nil, nil, true, SeverityWarning},
		{"disengaged customer", &MinEngagement{Floor: 0.3}, func(r *customer.Record) { r.EngagementScore = 0.29 }, nil, false, SeverityError},

		{"eu with consent", &Consent{RegulatedRegions: th.RegulatedRegions}, nil, nil, true, SeverityWarning},
		{"eu without consent", &Consent{RegulatedRegions: th.RegulatedRegions}, func(r *customer.Record) { r.Consent.GDPR = false }, nil, false, SeverityCritical},
		{"us without consent", &Consent{RegulatedRegions: th.RegulatedRegions}, func(r *customer.Record) {
			r.Region = "US"
			r.Consent.GDPR = false
		}, nil, true, SeverityWarning},

		{"disclosures present", Disclosure{}, nil, nil, true, SeverityWarning},
		{"missing address", Disclosure{}, nil, func(c *Content) { c.PhysicalAddress = " " }, false, SeverityCritical},

		{"on-brand tone", &Tone{Forbidden: th.ToneForbidden, RequiredMarkers: th.ToneRequiredMarkers, ForbiddenPenalty: 0.1, MarkerPenalty: 0.2, Threshold: 0.85}, nil, nil, true, SeverityWarning},
		{"one forbidden word", &Tone{Forbidden: th.ToneForbidden, RequiredMarkers: th.ToneRequiredMarkers, ForbiddenPenalty: 0.1, MarkerPenalty: 0.2, Threshold: 0.85}, nil, func(c *Content) { c.Body += " Cheap prices." }, true, SeverityWarning},
		{"no marker", &Tone{Forbidden: th.ToneForbidden, RequiredMarkers: th.ToneRequiredMarkers, ForbiddenPenalty: 0.1, MarkerPenalty: 0.2, Threshold: 0.85}, nil, func(c *Content) {
			c.Subject = "Your cart"
			c.Body = "Come back soon."
		}, false, SeverityError},

		{"personalized", &Personalization{}, nil, nil, true, SeverityWarning},
		{"generic", &Personalization{}, nil, func(c *Content) {
			c.Subject = "Hello"
			c.Body = "News from us."
		}, false, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := goodRecord()
			if tt.rec != nil {
				tt.rec(r)
			}
			c := goodContent()
			if tt.content != nil {
				tt.content(c)
			}

			got := tt.checker.Check(r, c)
			if got.Name != tt.checker.Name() {
				t.Errorf("Name = %q, want %q", got.Name, tt.checker.Name())
			}
			if got.Passed != tt.passed || got.Severity != tt.severity {
				t.Errorf("Check() = passed %v severity %s, want %v %s (details %v)",
					got.Passed, got.Severity, tt.passed, tt.severity, got.Details)
			}
		})
	}
}

type fixedCounter int

func (f fixedCounter) Count(string, string) int { return int(f) }

func TestAggregate(t *testing.T) {
	severities := []Severity{SeverityWarning, SeverityError, SeverityCritical}

	// Every combination of two checks' passed flag and severity.
	for _, s1 := range severities {
		for _, s2 := range severities {
			for _, p1 := range []bool{true, false} {
				for _, p2 := range []bool{true, false} {
					checks := map[string]Check{
						"a": {Name: "a", Passed: p1, Severity: s1},
						"b": {Name: "b", Passed: p2, Severity: s2},
					}
					want := !((!p1 && s1 == SeverityCritical) || (!p2 && s2 == SeverityCritical))
					if got := Aggregate(checks); got != want {
						t.Errorf("Aggregate(%v) = %v, want %v", checks, got, want)
					}
				}
			}
		}
	}
}

func TestGate_Evaluate(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(Checkers(DefaultThresholds(), nil)...)

	out := gate.Evaluate(ctx, goodRecord(), goodContent())
	if !out.Passed || len(out.Checks) != 7 {
		t.Fatalf("good content: passed=%v checks=%d failed=%v", out.Passed, len(out.Checks), out.Failed())
	}

	// Advisory failures do not block.
	r := goodRecord()
	r.EngagementScore = 0.1
	r.MessagesThisPeriod = 10
	out = gate.Evaluate(ctx, r, goodContent())
	if !out.Passed {
		t.Errorf("error-only failures blocked: %v", out.Blocking())
	}
	if len(out.Failed()) != 2 {
		t.Errorf("Failed() = %v", out.Failed())
	}

	// Critical failures block.
	r = goodRecord()
	r.Consent.GDPR = false
	c := goodContent()
	c.UnsubscribeLink = ""
	out = gate.Evaluate(ctx, r, c)
	if out.Passed {
		t.Error("critical failures did not block")
	}
	if got := out.Blocking(); !reflect.DeepEqual(got, []string{CheckConsent, CheckDisclosure}) {
		t.Errorf("Blocking() = %v", got)
	}
}

func TestGate_Idempotent(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(Checkers(DefaultThresholds(), nil)...)
	r := goodRecord()
	c := goodContent()
	c.Body += " Act now!! It's free!!"

	first := gate.Evaluate(ctx, r, c)
	second := gate.Evaluate(ctx, r, c)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated evaluation differs:\n%v\n%v", first, second)
	}
}

type panicChecker struct{}

func (panicChecker) Name() string { return "boom" }
func (panicChecker) Check(*customer.Record, *Content) Check {
	panic("broken check")
}

func TestGate_PanicIsCritical(t *testing.T) {
	gate := NewGate(panicChecker{}, Disclosure{})
	out := gate.Evaluate(context.Background(), goodRecord(), goodContent())
	if out.Passed {
		t.Error("panicking check did not block")
	}
	if c := out.Checks["boom"]; c.Severity != SeverityCritical || c.Passed {
		t.Errorf("panic result = %+v", c)
	}
}

func TestGate_SetCheckers(t *testing.T) {
	gate := NewGate(Disclosure{})
	gate.SetCheckers(&MinEngagement{Floor: 0.9})

	out := gate.Evaluate(context.Background(), goodRecord(), goodContent())
	if _, ok := out.Checks[CheckDisclosure]; ok {
		t.Error("old checker still evaluated")
	}
	if out.Checks[CheckMinEngagement].Passed {
		t.Error("new threshold not applied")
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("default thresholds invalid: %v", err)
	}

	bad := DefaultThresholds()
	bad.SpamThreshold = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero spam threshold")
	}

	bad = DefaultThresholds()
	delete(bad.FrequencyCaps, "marketing")
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing marketing cap")
	}
}
