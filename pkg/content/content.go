package content

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/decision"
	"mercator-hq/cadence/pkg/dispatch"
	"mercator-hq/cadence/pkg/guardrail"
)

// Placeholders understood by Personalize.
const (
	PlaceholderFirstName    = "{{first_name}}"
	PlaceholderBrandName    = "{{brand_name}}"
	PlaceholderCTAURL       = "{{cta_url}}"
	PlaceholderDiscount     = "{{discount}}"
	PlaceholderDiscountCode = "{{discount_code}}"
)

// fallbackFirstName replaces {{first_name}} when the record has none.
const fallbackFirstName = "there"

// shortLimit bounds the short body used by SMS, WhatsApp and push.
const shortLimit = 140

// Brand holds the sender identity and legally required footer data.
type Brand struct {
	Name            string `yaml:"name" json:"name"`
	FromAddress     string `yaml:"from_address" json:"from_address"`
	UnsubscribeURL  string `yaml:"unsubscribe_url" json:"unsubscribe_url"`
	PhysicalAddress string `yaml:"physical_address" json:"physical_address"`
	CTAURL          string `yaml:"cta_url" json:"cta_url"`
}

// Compose builds the gate-facing content for d. Placeholders are left in
// place so checks that look for personalization markers see them. A
// decision without copy yields content with only the footer fields set.
func Compose(d decision.Decision, rec *customer.Record, brand Brand) *guardrail.Content {
	c := &guardrail.Content{
		FromAddress:     brand.FromAddress,
		UnsubscribeLink: brand.UnsubscribeURL,
		PhysicalAddress: brand.PhysicalAddress,
		MessageType:     customer.DefaultMessageType,
	}
	if rec != nil && rec.MessageType != "" {
		c.MessageType = rec.MessageType
	}
	if d.Copy != nil {
		c.Subject = d.Copy.Subject
		c.Body = d.Copy.Body
		c.CTA = d.Copy.CTA
	}
	return c
}

// Personalize resolves every placeholder in d's copy for rec and returns
// the message handed to channel senders.
func Personalize(d decision.Decision, rec *customer.Record, brand Brand) dispatch.Message {
	if d.Copy == nil {
		return dispatch.Message{}
	}
	r := replacer(d, rec, brand)

	msg := dispatch.Message{
		Subject: r.Replace(d.Copy.Subject),
		Body:    r.Replace(d.Copy.Body),
		CTA:     r.Replace(d.Copy.CTA),
	}
	msg.Short = shorten(msg.Subject + ". " + msg.Body)
	msg.Variations = map[string]string{
		"headline": msg.Subject,
		"cta":      msg.CTA,
	}
	if url := brand.CTAURL; url != "" {
		msg.Variations["cta_url"] = url
	}
	return msg
}

// Contact extracts the channel reachability of rec.
func Contact(rec *customer.Record) dispatch.Contact {
	if rec == nil {
		return dispatch.Contact{}
	}
	return dispatch.Contact{
		Email:           rec.Email,
		Phone:           rec.Phone,
		WhatsAppConsent: rec.Consent.WhatsApp,
	}
}

// FirstName returns the customer's first name in title case.
func FirstName(rec *customer.Record) string {
	if rec == nil || strings.TrimSpace(rec.FirstName) == "" {
		return fallbackFirstName
	}
	return cases.Title(language.Und).String(strings.TrimSpace(rec.FirstName))
}

func replacer(d decision.Decision, rec *customer.Record, brand Brand) *strings.Replacer {
	return strings.NewReplacer(
		PlaceholderFirstName, FirstName(rec),
		PlaceholderBrandName, brand.Name,
		PlaceholderCTAURL, brand.CTAURL,
		PlaceholderDiscount, param(d, "discount_percentage"),
		PlaceholderDiscountCode, param(d, "discount_code"),
	)
}

func param(d decision.Decision, name string) string {
	v, ok := d.Parameters[name]
	if !ok || v == nil {
		return ""
	}
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%.1f", n)
	default:
		return fmt.Sprint(v)
	}
}

func shorten(s string) string {
	r := []rune(s)
	if len(r) <= shortLimit {
		return s
	}
	return strings.TrimSpace(string(r[:shortLimit-3])) + "..."
}
