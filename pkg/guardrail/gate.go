package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/cadence/pkg/customer"
)

// Thresholds holds the tunable parameters of the default check battery.
type Thresholds struct {
	FrequencyCaps    map[string]int
	SpamKeywords     []string
	SpamDivisor      float64
	SpamThreshold    float64
	MinEngagement    float64
	RegulatedRegions []string

	ToneForbidden        []string
	ToneRequiredMarkers  []string
	ToneForbiddenPenalty float64
	ToneMarkerPenalty    float64
	ToneThreshold        float64
}

// DefaultThresholds returns the built-in guardrail parameters.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FrequencyCaps: map[string]int{
			"marketing":     3,
			"transactional": 999,
			"promotional":   2,
			"newsletter":    1,
		},
		SpamKeywords: []string{
			"click here now", "urgent", "act now", "limited time", "guaranteed",
			"free", "no credit card", "risk free", "unsubscribe", "verify account",
		},
		SpamDivisor:          5,
		SpamThreshold:        0.7,
		MinEngagement:        0.3,
		RegulatedRegions:     []string{"EU"},
		ToneForbidden:        []string{"spam", "cheap", "limited", "urgent", "act now"},
		ToneRequiredMarkers:  []string{"{{first_name}}", "{{cta_url}}", "{{brand_name}}"},
		ToneForbiddenPenalty: 0.1,
		ToneMarkerPenalty:    0.2,
		ToneThreshold:        0.85,
	}
}

// Validate reports the first out-of-range threshold.
func (t Thresholds) Validate() error {
	switch {
	case t.SpamThreshold <= 0 || t.SpamThreshold > 1:
		return fmt.Errorf("spam threshold %v outside (0,1]", t.SpamThreshold)
	case t.SpamDivisor <= 0:
		return fmt.Errorf("spam divisor must be positive")
	case t.MinEngagement < 0 || t.MinEngagement > 1:
		return fmt.Errorf("minimum engagement %v outside [0,1]", t.MinEngagement)
	case t.ToneThreshold < 0 || t.ToneThreshold > 1:
		return fmt.Errorf("tone threshold %v outside [0,1]", t.ToneThreshold)
	}
	if _, ok := t.FrequencyCaps[customer.DefaultMessageType]; !ok {
		return fmt.Errorf("frequency caps must define %q", customer.DefaultMessageType)
	}
	return nil
}

// Checkers builds the seven default checks from thresholds. counter may be
// nil.
func Checkers(t Thresholds, counter Counter) []Checker {
	return []Checker{
		&FrequencyCap{Caps: t.FrequencyCaps, Counter: counter},
		&SpamScore{Keywords: t.SpamKeywords, Divisor: t.SpamDivisor, Threshold: t.SpamThreshold},
		&MinEngagement{Floor: t.MinEngagement},
		&Consent{RegulatedRegions: t.RegulatedRegions},
		Disclosure{},
		&Tone{
			Forbidden:        t.ToneForbidden,
			RequiredMarkers:  t.ToneRequiredMarkers,
			ForbiddenPenalty: t.ToneForbiddenPenalty,
			MarkerPenalty:    t.ToneMarkerPenalty,
			Threshold:        t.ToneThreshold,
		},
		&Personalization{},
	}
}

// Gate runs a battery of checks concurrently and aggregates the results.
// The battery can be replaced at runtime with SetCheckers.
type Gate struct {
	mu       sync.RWMutex
	checkers []Checker
	logger   *slog.Logger
}

// NewGate creates a gate over the given checkers.
func NewGate(checkers ...Checker) *Gate {
	return &Gate{
		checkers: checkers,
		logger:   slog.Default().With("component", "guardrail.gate"),
	}
}

// SetCheckers atomically replaces the check battery.
func (g *Gate) SetCheckers(checkers ...Checker) {
	g.mu.Lock()
	g.checkers = checkers
	g.mu.Unlock()
}

// Evaluate runs every check against the record and content. A check that
// panics is reported as a critical failure rather than crashing the run.
func (g *Gate) Evaluate(ctx context.Context, rec *customer.Record, content *Content) Outcome {
	g.mu.RLock()
	checkers := g.checkers
	g.mu.RUnlock()

	results := make([]Check, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					g.logger.Error("guardrail check panicked", "check", c.Name(), "panic", r)
					results[i] = Check{
						Name:     c.Name(),
						Severity: SeverityCritical,
						Details:  map[string]any{"error": fmt.Sprint(r)},
					}
				}
			}()
			results[i] = c.Check(rec, content)
		}()
	}
	wg.Wait()

	checks := make(map[string]Check, len(results))
	for _, r := range results {
		checks[r.Name] = r
	}
	out := Outcome{Passed: Aggregate(checks), Checks: checks}

	if !out.Passed {
		g.logger.Warn("guardrail gate blocked content",
			"customer_id", rec.ID,
			"blocking", out.Blocking(),
		)
	} else if failed := out.Failed(); len(failed) > 0 {
		g.logger.Debug("guardrail advisories",
			"customer_id", rec.ID,
			"failed", failed,
		)
	}
	return out
}
