package models

// Greeks are the first and second order sensitivities of an option price.
// Theta is per year; vega and rho are per unit change in volatility and rate.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// DailyTheta converts the annual theta into calendar-day decay
func (g Greeks) DailyTheta() float64 {
	return g.Theta / 365
}

// Scale multiplies every sensitivity by qty
func (g Greeks) Scale(qty float64) Greeks {
	return Greeks{
		Delta: g.Delta * qty,
		Gamma: g.Gamma * qty,
		Theta: g.Theta * qty,
		Vega:  g.Vega * qty,
		Rho:   g.Rho * qty,
	}
}

// Add returns the element-wise sum of g and o
func (g Greeks) Add(o Greeks) Greeks {
	return Greeks{
		Delta: g.Delta + o.Delta,
		Gamma: g.Gamma + o.Gamma,
		Theta: g.Theta + o.Theta,
		Vega:  g.Vega + o.Vega,
		Rho:   g.Rho + o.Rho,
	}
}

// VaRResult is a value-at-risk figure expressed as a positive loss
type VaRResult struct {
	Method          string  `json:"method"`
	ConfidenceLevel float64 `json:"confidence_level"`
	VaR             float64 `json:"var"`
	ConditionalVaR  float64 `json:"conditional_var"`
	Observations    int     `json:"observations"`
}
