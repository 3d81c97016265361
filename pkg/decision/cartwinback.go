package decision

import (
	"fmt"
	"strconv"

	"mercator-hq/cadence/pkg/customer"
)

// Cart recovery and win-back thresholds. The human review thresholds are
// business safety controls and are deliberately not configurable.
const (
	MinCartValue            = 20.0
	CartReviewThreshold     = 500.0
	MinWinbackInactiveDays  = 90
	WinbackReviewThreshold  = 2000.0
	cartRecoveryConfidence  = 0.89
	winbackConfidence       = 0.85
	cartRecoveryExpiryHours = 24
)

// Actions produced by CartWinback.
const (
	ActionSendCartRecovery = "send_cart_recovery_email"
	ActionExecuteWinback   = "execute_winback_campaign"
)

// CartWinback recovers abandoned carts and re-engages dormant customers.
// The trigger label selects the mode.
type CartWinback struct {
	b builder
}

// NewCartWinback creates the cart recovery / win-back policy.
func NewCartWinback(opts ...Option) *CartWinback {
	return &CartWinback{b: builder{policy: PolicyCartWinback, settings: newSettings(opts)}}
}

// Name implements Policy.
func (p *CartWinback) Name() string { return PolicyCartWinback }

// Decide implements Policy.
func (p *CartWinback) Decide(rec *customer.Record, tc Context) Decision {
	switch tc.Trigger {
	case "cart_abandoned":
		return p.cartRecovery(rec, tc)
	case "win_back", "customer_dormant":
		return p.winback(rec, tc)
	default:
		return p.b.skip(rec, tc, "cart_winback", fmt.Sprintf("trigger %q is not a cart or win-back trigger", tc.Trigger))
	}
}

// CartDiscount returns the recovery discount percentage. It never increases
// with cart value, and VIP customers get the smaller tier.
func CartDiscount(cartValue float64, vip bool) int {
	if vip {
		switch {
		case cartValue > 500:
			return 10
		case cartValue > 200:
			return 12
		default:
			return 15
		}
	}
	switch {
	case cartValue > 500:
		return 15
	case cartValue > 200:
		return 20
	default:
		return 25
	}
}

func (p *CartWinback) cartRecovery(rec *customer.Record, tc Context) Decision {
	if rec.CartValue < MinCartValue {
		return p.b.skip(rec, tc, "cart_recovery",
			fmt.Sprintf("cart value %.2f below minimum %.2f", rec.CartValue, MinCartValue))
	}

	discount := CartDiscount(rec.CartValue, rec.VIP)
	d := p.b.decision(rec, tc, ActionSendCartRecovery, map[string]any{
		"discount_percentage": discount,
		"discount_code":       code("RECOVER", rec.ID, ""),
		"expiry_hours":        cartRecoveryExpiryHours,
		"cart_value":          rec.CartValue,
		"cart_items":          append([]string(nil), rec.CartItems...),
		"vip":                 rec.VIP,
	})
	d.Channels = []string{"email"}
	d.Copy = &Copy{
		Subject: "{{first_name}}, your cart is waiting",
		Body: fmt.Sprintf("You left something in your cart at {{brand_name}}. Complete your order in the next %d hours and save %d%%.",
			cartRecoveryExpiryHours, discount),
		CTA: "Shop Now",
	}
	d.Confidence = cartRecoveryConfidence
	d.RequiresHumanReview = rec.CartValue > CartReviewThreshold
	d.Rationale = fmt.Sprintf("Cart value %.2f, VIP=%t: %d%% recovery discount", rec.CartValue, rec.VIP, discount)
	return d
}

// winbackOffer is one win-back tier.
type winbackOffer struct {
	strategy string
	discount int
	channels []string
}

func winbackTier(value float64) winbackOffer {
	switch {
	case value > 1000:
		return winbackOffer{"personal_concierge", 15, []string{"email", "phone"}}
	case value > 300:
		return winbackOffer{"discount_plus_new_products", 20, []string{"email", "sms"}}
	default:
		return winbackOffer{"generic_incentive", 15, []string{"email"}}
	}
}

func (p *CartWinback) winback(rec *customer.Record, tc Context) Decision {
	if rec.DaysSinceLastActivity < MinWinbackInactiveDays {
		return p.b.skip(rec, tc, "winback",
			fmt.Sprintf("inactive for %d days, win-back starts at %d", rec.DaysSinceLastActivity, MinWinbackInactiveDays))
	}

	offer := winbackTier(rec.CustomerValue)
	suffix := strconv.Itoa((rec.DaysSinceLastActivity / 30) % 10)
	d := p.b.decision(rec, tc, ActionExecuteWinback, map[string]any{
		"strategy":            offer.strategy,
		"discount_percentage": offer.discount,
		"discount_code":       code("WB", rec.ID, suffix),
		"days_inactive":       rec.DaysSinceLastActivity,
		"customer_value":      rec.CustomerValue,
	})
	d.Channels = append([]string(nil), offer.channels...)
	d.Copy = &Copy{
		Subject: "We miss you {{first_name}}, here is {{discount}}% off",
		Body:    "It has been a while. Come back to {{brand_name}} and see what is new, with a welcome-back discount on your next order.",
		CTA:     "Come Back",
	}
	d.Confidence = winbackConfidence
	d.RequiresHumanReview = rec.CustomerValue > WinbackReviewThreshold
	d.Rationale = fmt.Sprintf("Inactive %d days, value %.2f: %s", rec.DaysSinceLastActivity, rec.CustomerValue, offer.strategy)
	return d
}
