package risk

import (
	"fmt"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
)

// Portfolio is a time series of total position values
type Portfolio struct {
	Positions []float64 `json:"positions"`
}

// Returns computes simple period-over-period returns of the position values
func (p Portfolio) Returns() ([]float64, error) {
	if len(p.Positions) < 2 {
		return nil, errors.InvalidArgument("at least two position values are needed to compute returns")
	}

	returns := make([]float64, len(p.Positions)-1)
	for i := 1; i < len(p.Positions); i++ {
		prev := p.Positions[i-1]
		if prev <= 0 {
			return nil, errors.InvalidArgument(fmt.Sprintf("position value at %d must be positive, got %v", i-1, prev))
		}
		returns[i-1] = p.Positions[i]/prev - 1
	}
	return returns, nil
}

// ValueAtRisk is the historical VaR of the portfolio's returns as a fraction of value
func (p Portfolio) ValueAtRisk(confidence float64) (float64, error) {
	returns, err := p.Returns()
	if err != nil {
		return 0, err
	}
	return HistoricalVaR(returns, confidence)
}
