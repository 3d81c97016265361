package experiment

// ChiSquare returns the pooled-proportion chi-square statistic for two
// groups with n impressions and c conversions each. Only the conversion
// cells contribute. It returns 0 when either group has no impressions or no
// conversions were observed at all.
func ChiSquare(n1, c1, n2, c2 int64) float64 {
	if n1 <= 0 || n2 <= 0 {
		return 0
	}
	p := float64(c1+c2) / float64(n1+n2)
	if p == 0 {
		return 0
	}

	e1 := float64(n1) * p
	e2 := float64(n2) * p
	d1 := float64(c1) - e1
	d2 := float64(c2) - e2
	return d1*d1/e1 + d2*d2/e2
}

// PValue maps a chi-square statistic (one degree of freedom) to a p-value
// using a coarse step table. This is an approximation kept for reproducible
// results and is not an exact distribution.
func PValue(chi2 float64) float64 {
	switch {
	case chi2 < 2.7:
		return 0.10
	case chi2 < 3.8:
		return 0.05
	case chi2 < 6.6:
		return 0.01
	default:
		return 0.001
	}
}

// Comparison is the outcome of testing one variant against control.
type Comparison struct {
	VariantID      string  `json:"variant_id"`
	ConversionRate float64 `json:"conversion_rate"`
	ControlRate    float64 `json:"control_rate"`
	Lift           float64 `json:"lift"`
	ChiSquare      float64 `json:"chi_square"`
	PValue         float64 `json:"p_value"`

	// Defined is false when either side has no impressions.
	Defined     bool `json:"defined"`
	Significant bool `json:"significant"`

	// Better is true when the variant converts above control.
	Better bool `json:"better"`
}

// Wins reports whether the comparison qualifies the variant as winner.
func (c Comparison) Wins() bool {
	return c.Defined && c.Significant && c.Better
}

// Compare tests variant against control at the given confidence level.
func Compare(control, variant Variant, confidence float64) Comparison {
	cmp := Comparison{
		VariantID:      variant.ID,
		ConversionRate: variant.ConversionRate(),
		ControlRate:    control.ConversionRate(),
	}
	if control.Impressions == 0 || variant.Impressions == 0 {
		return cmp
	}

	cmp.Defined = true
	cmp.ChiSquare = ChiSquare(control.Impressions, control.Conversions, variant.Impressions, variant.Conversions)
	cmp.PValue = PValue(cmp.ChiSquare)
	cmp.Significant = cmp.PValue < 1-confidence
	cmp.Better = cmp.ConversionRate > cmp.ControlRate
	if cmp.ControlRate > 0 {
		cmp.Lift = (cmp.ConversionRate - cmp.ControlRate) / cmp.ControlRate
	}
	return cmp
}
