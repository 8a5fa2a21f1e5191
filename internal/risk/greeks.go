package risk

import (
	"fmt"
	"math"

	"github.com/rzzdr/options-engine/internal/pricing"
	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
)

// CalculateGreeks returns the analytic sensitivities of c. Theta is per year.
func CalculateGreeks(c models.Contract) (models.Greeks, error) {
	d1, d2, err := pricing.D1D2(c)
	if err != nil {
		return models.Greeks{}, err
	}

	sign := c.Sign()
	sqrtT := math.Sqrt(c.TimeToExpiry)
	density := pricing.NormalPDF(d1)
	growth := math.Exp(-c.RiskFreeRate * c.TimeToExpiry)
	nd2 := pricing.NormalCDF(sign * d2)

	greeks := models.Greeks{
		Delta: sign * pricing.NormalCDF(sign*d1),
		Gamma: density / (c.UnderlyingPrice * c.Volatility * sqrtT),
		Theta: -c.UnderlyingPrice*density*c.Volatility/(2*sqrtT) - sign*c.RiskFreeRate*c.Strike*growth*nd2,
		Vega:  c.UnderlyingPrice * density * sqrtT,
		Rho:   sign * c.Strike * c.TimeToExpiry * growth * nd2,
	}

	for name, v := range map[string]float64{
		"delta": greeks.Delta, "gamma": greeks.Gamma, "theta": greeks.Theta,
		"vega": greeks.Vega, "rho": greeks.Rho,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.Greeks{}, errors.NumericOverflow(fmt.Sprintf("%s is not finite", name))
		}
	}

	return greeks, nil
}

// PortfolioGreeks aggregates the Greeks of each contract weighted by its quantity.
// Negative quantities are short positions.
func PortfolioGreeks(contracts []models.Contract, quantities []float64) (models.Greeks, error) {
	if len(contracts) != len(quantities) {
		return models.Greeks{}, errors.InvalidArgument(
			fmt.Sprintf("got %d contracts but %d quantities", len(contracts), len(quantities)))
	}

	var total models.Greeks
	for i, c := range contracts {
		g, err := CalculateGreeks(c)
		if err != nil {
			return models.Greeks{}, errors.Wrapf(err, "position %d", i)
		}
		total = total.Add(g.Scale(quantities[i]))
	}
	return total, nil
}
