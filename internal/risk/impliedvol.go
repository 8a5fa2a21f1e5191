package risk

import (
	"fmt"
	"math"

	"github.com/rzzdr/options-engine/internal/pricing"
	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
)

const (
	minImpliedVol      = 1e-4
	maxImpliedVol      = 5.0
	impliedVolTol      = 1e-8
	impliedVolMaxIters = 100
	initialVolGuess    = 0.2
)

// ImpliedVolatility solves for the volatility at which the analytic price of c
// equals marketPrice. The contract's own volatility is ignored.
func ImpliedVolatility(c models.Contract, marketPrice float64) (float64, error) {
	probe := c
	probe.Volatility = initialVolGuess
	if err := probe.Validate(); err != nil {
		return 0, err
	}
	if math.IsNaN(marketPrice) || math.IsInf(marketPrice, 0) || marketPrice <= 0 {
		return 0, errors.InvalidArgument(fmt.Sprintf("market price must be positive, got %v", marketPrice))
	}

	discountedStrike := c.Strike * math.Exp(-c.RiskFreeRate*c.TimeToExpiry)
	var lower, upper float64
	if c.OptionType == models.OptionTypeCall {
		lower, upper = math.Max(c.UnderlyingPrice-discountedStrike, 0), c.UnderlyingPrice
	} else {
		lower, upper = math.Max(discountedStrike-c.UnderlyingPrice, 0), discountedStrike
	}
	if marketPrice <= lower || marketPrice >= upper {
		return 0, errors.InvalidArgument(
			fmt.Sprintf("market price %v outside no-arbitrage bounds (%v, %v)", marketPrice, lower, upper))
	}

	priceAt := func(vol float64) (float64, error) {
		probe.Volatility = vol
		return pricing.PriceAnalytic(probe)
	}

	floor, err := priceAt(minImpliedVol)
	if err != nil {
		return 0, err
	}
	ceiling, err := priceAt(maxImpliedVol)
	if err != nil {
		return 0, err
	}
	if marketPrice < floor-impliedVolTol || marketPrice > ceiling+impliedVolTol {
		return 0, errors.Internal(fmt.Sprintf("market price %v not reachable with volatility in [%v, %v]",
			marketPrice, minImpliedVol, maxImpliedVol))
	}

	// Newton first, it converges in a handful of steps near the money
	lo, hi := minImpliedVol, maxImpliedVol
	vol := initialVolGuess
	for i := 0; i < impliedVolMaxIters; i++ {
		price, err := priceAt(vol)
		if err != nil {
			return 0, err
		}
		diff := price - marketPrice
		if math.Abs(diff) < impliedVolTol {
			return vol, nil
		}
		if diff > 0 {
			hi = vol
		} else {
			lo = vol
		}

		g, err := CalculateGreeks(probe)
		if err != nil {
			return 0, err
		}
		next := vol - diff/g.Vega
		if g.Vega < 1e-12 || next <= lo || next >= hi || math.IsNaN(next) {
			break
		}
		vol = next
	}

	// bisection over the bracket Newton narrowed down
	for i := 0; i < impliedVolMaxIters; i++ {
		mid := 0.5 * (lo + hi)
		price, err := priceAt(mid)
		if err != nil {
			return 0, err
		}
		diff := price - marketPrice
		if math.Abs(diff) < impliedVolTol || hi-lo < impliedVolTol {
			return mid, nil
		}
		if diff > 0 {
			hi = mid
		} else {
			lo = mid
		}
	}

	return 0, errors.Internal(fmt.Sprintf("implied volatility did not converge for market price %v", marketPrice))
}
