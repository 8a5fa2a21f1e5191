package backtest

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(closes ...float64) models.PriceSeries {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := models.PriceSeries{Symbol: "AAPL"}
	for i, c := range closes {
		s.Points = append(s.Points, models.PricePoint{Time: start.AddDate(0, 0, i), Close: c})
	}
	return s
}

var template = models.Contract{TimeToExpiry: 0.25, RiskFreeRate: 0.05, Volatility: 0.2, OptionType: models.OptionTypeCall}

func TestRunFixedStrike(t *testing.T) {
	res, err := Run(series(100, 105, 95), FixedStrike(template, 100))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, []float64{0, 5, -5}, res.PnL)
	require.Len(t, res.Times, 3)
	assert.True(t, res.Times[0].Before(res.Times[1]))

	sum := res.Summary()
	assert.Equal(t, 3, sum.Count)
	assert.InDelta(t, 0, sum.Total, 1e-12)
	assert.InDelta(t, 5, sum.StdDev, 1e-12)
	assert.Equal(t, -5.0, sum.Min)
	assert.Equal(t, 5.0, sum.Max)
}

func TestRunAtTheMoneyIsFlat(t *testing.T) {
	res, err := Run(series(100, 120, 80), AtTheMoney(template))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, res.PnL)
}

func TestRunEmptySeries(t *testing.T) {
	res, err := Run(models.PriceSeries{}, AtTheMoney(template))
	require.NoError(t, err)
	assert.Empty(t, res.PnL)
	assert.Equal(t, Summary{}, res.Summary())
}

func TestRunSelectorError(t *testing.T) {
	boom := stderrors.New("no chain for this price")
	calls := 0
	_, err := Run(series(100, 101, 102), func(price float64) (models.Contract, error) {
		calls++
		if price > 100.5 {
			return models.Contract{}, boom
		}
		return FixedStrike(template, 100)(price)
	})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, boom))
	assert.Contains(t, err.Error(), "point 1")
	assert.Equal(t, 2, calls)
}

func TestRunInvalidContractFromSelector(t *testing.T) {
	_, err := Run(series(100), FixedStrike(template, -1))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidContract))

	_, err = Run(series(100), nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}
