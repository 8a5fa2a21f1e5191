package pricing

import (
	"fmt"
	"math"

	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
)

// D1D2 returns the Black-Scholes d1 and d2 terms for c
func D1D2(c models.Contract) (d1, d2 float64, err error) {
	if err := c.Validate(); err != nil {
		return 0, 0, err
	}
	d1, d2 = d1d2(c)
	return d1, d2, nil
}

func d1d2(c models.Contract) (float64, float64) {
	volSqrtT := c.Volatility * math.Sqrt(c.TimeToExpiry)
	d1 := (math.Log(c.UnderlyingPrice/c.Strike) + (c.RiskFreeRate+0.5*c.Volatility*c.Volatility)*c.TimeToExpiry) / volSqrtT
	return d1, d1 - volSqrtT
}

// PriceAnalytic returns the Black-Scholes value of c
func PriceAnalytic(c models.Contract) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	d1, d2 := d1d2(c)
	discountedStrike := c.Strike * math.Exp(-c.RiskFreeRate*c.TimeToExpiry)

	var price float64
	if c.OptionType == models.OptionTypeCall {
		price = c.UnderlyingPrice*NormalCDF(d1) - discountedStrike*NormalCDF(d2)
	} else {
		price = discountedStrike*NormalCDF(-d2) - c.UnderlyingPrice*NormalCDF(-d1)
	}

	return checkFinite("analytic", price)
}

func checkFinite(engine string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.NumericOverflow(fmt.Sprintf("%s price is not finite", engine))
	}
	return v, nil
}
