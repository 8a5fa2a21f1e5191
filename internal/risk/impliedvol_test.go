package risk

import (
	"testing"

	"github.com/rzzdr/options-engine/internal/pricing"
	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		c    models.Contract
	}{
		{"atm call", contract(t, 100, 100, 1, 0.05, 0.35, models.OptionTypeCall)},
		{"otm put", contract(t, 100, 80, 0.5, 0.02, 0.45, models.OptionTypePut)},
		{"itm call short dated", contract(t, 120, 100, 0.1, 0.01, 0.15, models.OptionTypeCall)},
		{"high vol put", contract(t, 50, 60, 2, 0.03, 1.8, models.OptionTypePut)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			price, err := pricing.PriceAnalytic(tc.c)
			require.NoError(t, err)

			seeded := tc.c
			seeded.Volatility = 0.9
			vol, err := ImpliedVolatility(seeded, price)
			require.NoError(t, err)
			assert.InDelta(t, tc.c.Volatility, vol, 1e-5)
		})
	}
}

func TestImpliedVolatilityRejectsArbitrage(t *testing.T) {
	c := contract(t, 120, 100, 1, 0.05, 0.2, models.OptionTypeCall)

	_, err := ImpliedVolatility(c, 10)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument), "below intrinsic: %v", err)

	_, err = ImpliedVolatility(c, 125)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument), "above spot: %v", err)

	_, err = ImpliedVolatility(c, -1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestImpliedVolatilityInvalidContract(t *testing.T) {
	_, err := ImpliedVolatility(models.Contract{UnderlyingPrice: 100, Strike: 0, TimeToExpiry: 1, OptionType: models.OptionTypeCall}, 5)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidContract))
}
