// Package strategy suggests a simple options strategy for a contract from its
// price and vega.
package strategy

import (
	"github.com/rzzdr/options-engine/internal/pricing"
	"github.com/rzzdr/options-engine/internal/risk"
	"github.com/rzzdr/options-engine/pkg/models"
)

// VegaPriceRatio is the vega-to-price ratio above which a contract is
// considered volatility-driven enough for a straddle.
const VegaPriceRatio = 0.1

const (
	straddleDescription    = "Buy call and put at the same strike to play volatility"
	coveredCallDescription = "Hold underlying and sell call"
)

// Recommend returns a Straddle when vega exceeds a tenth of the analytic
// price and a Covered Call otherwise. The Straddle's second leg is always a
// put, so a put input yields two identical puts.
func Recommend(c models.Contract) (models.Strategy, error) {
	price, err := pricing.PriceAnalytic(c)
	if err != nil {
		return models.Strategy{}, err
	}
	greeks, err := risk.CalculateGreeks(c)
	if err != nil {
		return models.Strategy{}, err
	}

	if greeks.Vega > VegaPriceRatio*price {
		return models.Strategy{
			Name:        models.StrategyStraddle,
			Description: straddleDescription,
			Contracts:   []models.Contract{c, c.WithOptionType(models.OptionTypePut)},
		}, nil
	}

	return models.Strategy{
		Name:        models.StrategyCoveredCall,
		Description: coveredCallDescription,
		Contracts:   []models.Contract{c},
	}, nil
}
