package pricing

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSimulations is the number of terminal paths used when the caller has no preference
const DefaultSimulations = 10000

// MonteCarloEstimate is a simulated price together with its standard error
type MonteCarloEstimate struct {
	Price       float64 `json:"price"`
	StdErr      float64 `json:"std_err"`
	Simulations int     `json:"simulations"`
}

// PriceMonteCarlo returns the simulated value of c. src must not be shared
// with other goroutines while the call runs.
func PriceMonteCarlo(c models.Contract, simulations int, src rand.Source) (float64, error) {
	est, err := EstimateMonteCarlo(c, simulations, src)
	if err != nil {
		return 0, err
	}
	return est.Price, nil
}

// EstimateMonteCarlo simulates terminal prices of the underlying under
// risk-neutral GBM and averages the discounted payoffs.
func EstimateMonteCarlo(c models.Contract, simulations int, src rand.Source) (MonteCarloEstimate, error) {
	if err := c.Validate(); err != nil {
		return MonteCarloEstimate{}, err
	}
	if simulations <= 0 {
		return MonteCarloEstimate{}, errors.InvalidArgument(fmt.Sprintf("simulations must be positive, got %d", simulations))
	}
	if src == nil {
		return MonteCarloEstimate{}, errors.InvalidArgument("random source is required")
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	drift := (c.RiskFreeRate - 0.5*c.Volatility*c.Volatility) * c.TimeToExpiry
	diffusion := c.Volatility * math.Sqrt(c.TimeToExpiry)
	discount := math.Exp(-c.RiskFreeRate * c.TimeToExpiry)

	payoffs := make([]float64, simulations)
	for i := range payoffs {
		terminal := c.UnderlyingPrice * math.Exp(drift+diffusion*normal.Rand())
		payoffs[i] = discount * c.Payoff(terminal)
	}

	mean, std := stat.MeanStdDev(payoffs, nil)
	price, err := checkFinite("monte carlo", mean)
	if err != nil {
		return MonteCarloEstimate{}, err
	}

	est := MonteCarloEstimate{Price: price, Simulations: simulations}
	if simulations > 1 {
		est.StdErr = std / math.Sqrt(float64(simulations))
	}
	return est, nil
}
