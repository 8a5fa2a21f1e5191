package pricing

import (
	"fmt"
	"math"

	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/pools"
)

// DefaultTreeSteps is the number of time steps used when the caller has no preference
const DefaultTreeSteps = 100

var maxLogFloat = math.Log(math.MaxFloat64)

var nodePool = pools.NewFloat64SlicePool(DefaultTreeSteps+1, 20001)

// PriceTree values c on a Cox-Ross-Rubinstein binomial lattice with the given
// number of steps. Only European exercise is supported.
func PriceTree(c models.Contract, steps int) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if steps <= 0 {
		return 0, errors.InvalidArgument(fmt.Sprintf("tree steps must be positive, got %d", steps))
	}

	// the top terminal node is S·u^steps
	if math.Log(c.UnderlyingPrice)+c.Volatility*math.Sqrt(c.TimeToExpiry*float64(steps)) > maxLogFloat {
		return 0, errors.NumericOverflow("terminal tree node exceeds float64 range")
	}

	dt := c.TimeToExpiry / float64(steps)
	logU := c.Volatility * math.Sqrt(dt)
	u := math.Exp(logU)
	d := 1 / u
	p := (math.Exp(c.RiskFreeRate*dt) - d) / (u - d)
	// e^(r·dt) must lie in (d, u) for p to be a probability
	if !(p > 0 && p < 1) {
		return 0, errors.InvalidArgument(fmt.Sprintf(
			"risk-neutral up probability %v outside (0, 1) for %d steps, use more steps or a higher volatility", p, steps))
	}
	discount := math.Exp(-c.RiskFreeRate * dt)

	values := nodePool.Get(steps + 1)
	defer nodePool.Put(values)
	for j := 0; j <= steps; j++ {
		spot := c.UnderlyingPrice * math.Exp(logU*float64(2*j-steps))
		values[j] = c.Payoff(spot)
	}

	for i := steps - 1; i >= 0; i-- {
		for j := 0; j <= i; j++ {
			values[j] = discount * (p*values[j+1] + (1-p)*values[j])
		}
	}

	return checkFinite("tree", values[0])
}
