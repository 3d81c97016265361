package experiment

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"unicode/utf8"
)

// Strategy names the copywriting angle a generated variant takes.
type Strategy string

// Generation strategies. Control is the unmodified baseline.
const (
	StrategyControl     Strategy = "control"
	StrategyCuriosity   Strategy = "curiosity"
	StrategyBenefit     Strategy = "benefit"
	StrategyUrgency     Strategy = "urgency"
	StrategySocialProof Strategy = "social_proof"
)

// Creative is one piece of message copy.
type Creative struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	CTA     string `json:"cta"`
}

// DefaultCreative fills empty baseline fields.
var DefaultCreative = Creative{
	Subject: "{{first_name}}, check this out!",
	Body:    "We have something special for you at {{brand_name}}.",
	CTA:     "Learn More",
}

// Candidate is a generated creative with its scores.
type Candidate struct {
	Name     string   `json:"name"`
	Strategy Strategy `json:"strategy"`
	Creative Creative `json:"creative"`

	BrandScore  float64 `json:"brand_score"`
	ToneScore   float64 `json:"tone_score"`
	LengthScore float64 `json:"length_score"`
	Score       float64 `json:"score"`
}

// Weights combines the three scoring axes into one score.
type Weights struct {
	Brand  float64
	Tone   float64
	Length float64
}

// DefaultWeights are the documented scoring weights.
var DefaultWeights = Weights{Brand: 0.3, Tone: 0.4, Length: 0.3}

// Generate returns the control creative followed by one variant per
// strategy. Empty baseline fields are taken from DefaultCreative.
func Generate(base Creative) []Candidate {
	if base.Subject == "" {
		base.Subject = DefaultCreative.Subject
	}
	if base.Body == "" {
		base.Body = DefaultCreative.Body
	}
	if base.CTA == "" {
		base.CTA = DefaultCreative.CTA
	}

	return []Candidate{
		{Name: "Control (Original)", Strategy: StrategyControl, Creative: base},
		{
			Name:     "Curiosity-driven",
			Strategy: StrategyCuriosity,
			Creative: Creative{
				Subject: "{{first_name}}, you won't believe what we found for you",
				Body:    "Our team at {{brand_name}} discovered something that matches your interests. Take a peek inside.",
				CTA:     "Show Me",
			},
		},
		{
			Name:     "Benefit-focused",
			Strategy: StrategyBenefit,
			Creative: Creative{
				Subject: "{{first_name}}, save 20% on items you'll love",
				Body:    "Based on your recent browsing, {{brand_name}} curated a selection just for you. Enjoy an exclusive discount.",
				CTA:     "Claim Discount",
			},
		},
		{
			Name:     "Time-sensitive",
			Strategy: StrategyUrgency,
			Creative: Creative{
				Subject: "Only 24 hours: your personalized picks, {{first_name}}",
				Body:    "We saved these items for you, but they're selling fast. Secure yours at {{brand_name}} before they're gone.",
				CTA:     "Shop Now",
			},
		},
		{
			Name:     "Social proof",
			Strategy: StrategySocialProof,
			Creative: Creative{
				Subject: "1000+ customers loved this, {{first_name}}. Your turn?",
				Body:    "Join thousands of happy {{brand_name}} customers who discovered these bestsellers.",
				CTA:     "Explore Now",
			},
		},
	}
}

// Scorer rates candidates. Brand and tone consistency are sampled from a
// pseudo-random source seeded by the scorer seed and the scoring key, so the
// same key always yields the same scores.
type Scorer struct {
	seed    uint64
	weights Weights
}

// NewScorer creates a scorer with DefaultWeights.
func NewScorer(seed uint64) *Scorer {
	return &Scorer{seed: seed, weights: DefaultWeights}
}

// WithWeights returns a copy of the scorer using w.
func (s *Scorer) WithWeights(w Weights) *Scorer {
	c := *s
	c.weights = w
	return &c
}

// Score returns scored copies of candidates ranked by descending combined
// score. Ties keep generation order.
func (s *Scorer) Score(key string, candidates []Candidate) []Candidate {
	h := fnv.New64a()
	h.Write([]byte(key))
	rng := rand.New(rand.NewPCG(s.seed, h.Sum64()))

	scored := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.BrandScore = 0.8 + rng.Float64()*0.2
		c.ToneScore = 0.85 + rng.Float64()*0.15
		c.LengthScore = lengthFit(c.Creative.Subject)
		c.Score = s.weights.Brand*c.BrandScore + s.weights.Tone*c.ToneScore + s.weights.Length*c.LengthScore
		scored[i] = c
	}

	slices.SortStableFunc(scored, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return scored
}

// lengthFit rates subject length against the inbox preview width.
func lengthFit(subject string) float64 {
	n := utf8.RuneCountInString(subject)
	switch {
	case n == 0:
		return 0
	case n <= 60:
		return 0.95
	case n <= 80:
		return 0.8
	default:
		return 0.6
	}
}

// DefaultControlShare is the traffic share reserved for the control variant.
const DefaultControlShare = 0.30

// PlannedVariant is a candidate with its allocated traffic share.
type PlannedVariant struct {
	Candidate
	TrafficShare float64 `json:"traffic_share"`
}

// Allocate assigns traffic to ranked candidates. The control candidate gets
// controlShare regardless of its rank or of how many variants exist; the rest
// is split equally among the others. The control is moved to the front of
// the result and the others keep their rank order.
func Allocate(ranked []Candidate, controlShare float64) ([]PlannedVariant, error) {
	if len(ranked) == 0 {
		return nil, &InvariantError{Reason: "no candidates to allocate"}
	}
	if controlShare <= 0 || controlShare >= 1 {
		return nil, &InvariantError{Reason: fmt.Sprintf("control share %v outside (0,1)", controlShare)}
	}

	ctrl := slices.IndexFunc(ranked, func(c Candidate) bool { return c.Strategy == StrategyControl })
	if ctrl < 0 {
		ctrl = 0
	}

	plan := make([]PlannedVariant, 0, len(ranked))
	if len(ranked) == 1 {
		return append(plan, PlannedVariant{Candidate: ranked[0], TrafficShare: 1}), nil
	}

	plan = append(plan, PlannedVariant{Candidate: ranked[ctrl], TrafficShare: controlShare})
	each := (1 - controlShare) / float64(len(ranked)-1)
	for i, c := range ranked {
		if i == ctrl {
			continue
		}
		plan = append(plan, PlannedVariant{Candidate: c, TrafficShare: each})
	}
	return plan, nil
}

// Specs converts a plan into variant specs for Engine.Create. The control
// variant gets the id "control"; the others use their strategy name.
func Specs(plan []PlannedVariant) []VariantSpec {
	specs := make([]VariantSpec, len(plan))
	for i, p := range plan {
		id := string(p.Strategy)
		if i == 0 {
			id = ControlID
		}
		creative := p.Creative
		specs[i] = VariantSpec{ID: id, Name: p.Name, TrafficShare: p.TrafficShare, Creative: &creative}
	}
	return specs
}

// PlanVariants generates, scores and allocates variants for a baseline
// creative. key seeds the scorer, so equal keys give equal plans.
func PlanVariants(s *Scorer, key string, base Creative, controlShare float64) ([]VariantSpec, error) {
	plan, err := Allocate(s.Score(key, Generate(base)), controlShare)
	if err != nil {
		return nil, err
	}
	return Specs(plan), nil
}
