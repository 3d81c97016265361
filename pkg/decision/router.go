package decision

import (
	"fmt"

	"mercator-hq/cadence/pkg/customer"
	"mercator-hq/cadence/pkg/experiment"
)

// DefaultRoutes maps trigger labels to policy names. Labels not listed are
// handled by the fallback policy.
var DefaultRoutes = map[string]string{
	"cart_abandoned":   PolicyCartWinback,
	"win_back":         PolicyCartWinback,
	"customer_dormant": PolicyCartWinback,
	"creative_test":    PolicyCreativeTest,
	"campaign_launch":  PolicyCreativeTest,
	"lifecycle_change": PolicyLifecycle,
	"lifecycle_review": PolicyLifecycle,
}

// DefaultFallback is the policy used for unmatched triggers.
const DefaultFallback = PolicyCampaign

// Router selects exactly one policy per trigger label.
type Router struct {
	routes   map[string]Policy
	fallback Policy
	policies map[string]Policy
}

// NewRouter builds a router from a set of policies, a label-to-policy-name
// table and the name of the fallback policy. Every name referenced by the
// table and the fallback must belong to a supplied policy.
func NewRouter(policies []Policy, routes map[string]string, fallback string) (*Router, error) {
	byName := make(map[string]Policy, len(policies))
	for _, p := range policies {
		if _, dup := byName[p.Name()]; dup {
			return nil, fmt.Errorf("duplicate policy %q", p.Name())
		}
		byName[p.Name()] = p
	}

	fb, ok := byName[fallback]
	if !ok {
		return nil, fmt.Errorf("fallback policy %q not registered", fallback)
	}

	r := &Router{
		routes:   make(map[string]Policy, len(routes)),
		fallback: fb,
		policies: byName,
	}
	for label, name := range routes {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("route %q references unknown policy %q", label, name)
		}
		r.routes[label] = p
	}
	return r, nil
}

// NewDefaultRouter wires the four built-in policies with DefaultRoutes.
func NewDefaultRouter(scorer *experiment.Scorer, opts ...Option) *Router {
	r, err := NewRouter([]Policy{
		NewCampaign(opts...),
		NewLifecycle(opts...),
		NewCreativeTest(scorer, opts...),
		NewCartWinback(opts...),
	}, DefaultRoutes, DefaultFallback)
	if err != nil {
		// The built-in table only references built-in policies.
		panic(err)
	}
	return r
}

// Route returns the policy for a trigger label.
func (r *Router) Route(trigger string) Policy {
	if p, ok := r.routes[trigger]; ok {
		return p
	}
	return r.fallback
}

// Policy returns a registered policy by name.
func (r *Router) Policy(name string) (Policy, bool) {
	p, ok := r.policies[name]
	return p, ok
}

// Decide routes the trigger and runs the selected policy.
func (r *Router) Decide(rec *customer.Record, tc Context) Decision {
	return r.Route(tc.Trigger).Decide(rec, tc)
}
