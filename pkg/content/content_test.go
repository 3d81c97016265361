package content

import (
	"strings"
	"testing"

	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/decision"
)

var testBrand = Brand{
	Name:            "YourBrand",
	FromAddress:     "noreply@yourbrand.com",
	UnsubscribeURL:  "https://yourbrand.com/unsubscribe",
	PhysicalAddress: "123 Main St, City, Country",
	CTAURL:          "https://yourbrand.com/cart",
}

func winbackDecision() decision.Decision {
	return decision.Decision{
		Action: "execute_winback_campaign",
		Parameters: map[string]any{
			"discount_percentage": 20,
			"discount_code":       "WB_0024",
		},
		Copy: &decision.Copy{
			Subject: "We miss you {{first_name}}, here is {{discount}}% off",
			Body:    "Use {{discount_code}} at {{brand_name}}: {{cta_url}}",
			CTA:     "Come Back",
		},
	}
}

func TestCompose_KeepsPlaceholders(t *testing.T) {
	rec := &customer.Record{ID: "cust_002", MessageType: "promotional"}
	c := Compose(winbackDecision(), rec, testBrand)

	if !strings.Contains(c.Subject, "{{first_name}}") {
		t.Errorf("Subject = %q, placeholders resolved too early", c.Subject)
	}
	if c.MessageType != "promotional" {
		t.Errorf("MessageType = %q", c.MessageType)
	}
	if c.UnsubscribeLink != testBrand.UnsubscribeURL || c.PhysicalAddress != testBrand.PhysicalAddress {
		t.Errorf("footer fields not copied: %+v", c)
	}

	empty := Compose(decision.Decision{Action: decision.ActionSkip}, nil, testBrand)
	if empty.Subject != "" || empty.MessageType != customer.DefaultMessageType {
		t.Errorf("Compose(no copy) = %+v", empty)
	}
}

func TestPersonalize(t *testing.T) {
	tests := []struct {
		name      string
		firstName string
		params    map[string]any
		subject   string
		body      string
	}{
		{
			name:      "lower-case name is title-cased",
			firstName: "liam",
			params:    map[string]any{"discount_percentage": 20, "discount_code": "WB_0024"},
			subject:   "We miss you Liam, here is 20% off",
			body:      "Use WB_0024 at YourBrand: https://yourbrand.com/cart",
		},
		{
			name:    "missing name falls back",
			params:  map[string]any{"discount_percentage": 15.0, "discount_code": "WB_0001"},
			subject: "We miss you there, here is 15% off",
			body:    "Use WB_0001 at YourBrand: https://yourbrand.com/cart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := winbackDecision()
			d.Parameters = tt.params
			msg := Personalize(d, &customer.Record{FirstName: tt.firstName}, testBrand)

			if msg.Subject != tt.subject {
				t.Errorf("Subject = %q, want %q", msg.Subject, tt.subject)
			}
			if msg.Body != tt.body {
				t.Errorf("Body = %q, want %q", msg.Body, tt.body)
			}
			if strings.Contains(msg.Short, "{{") {
				t.Errorf("Short = %q still has placeholders", msg.Short)
			}
		})
	}
}

func TestPersonalize_Shortens(t *testing.T) {
	d := winbackDecision()
	d.Copy.Body = strings.Repeat("word ", 100)

	msg := Personalize(d, &customer.Record{FirstName: "Emma"}, testBrand)
	if n := len([]rune(msg.Short)); n > shortLimit {
		t.Errorf("Short has %d runes, limit %d", n, shortLimit)
	}
	if !strings.HasSuffix(msg.Short, "...") {
		t.Errorf("Short = %q, want ellipsis", msg.Short)
	}
}

func TestContact(t *testing.T) {
	rec := &customer.Record{Email: "e@example.com", Phone: "+1", Consent: customer.Consent{WhatsApp: true}}
	c := Contact(rec)
	if c.Email != "e@example.com" || c.Phone != "+1" || !c.WhatsAppConsent {
		t.Errorf("Contact() = %+v", c)
	}
}
