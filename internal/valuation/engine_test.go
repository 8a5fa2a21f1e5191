package valuation

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rzzdr/options-engine/pkg/metrics"
	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/backpressure"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceCall(t *testing.T) models.Contract {
	t.Helper()
	c, err := models.NewContract(100, 100, 1, 0.05, 0.2, models.OptionTypeCall)
	require.NoError(t, err)
	return c
}

func TestParseMethod(t *testing.T) {
	tests := map[string]Method{
		"":           MethodAnalytic,
		"Analytic":   MethodAnalytic,
		"tree":       MethodTree,
		"binomial":   MethodTree,
		"montecarlo": MethodMonteCarlo,
		"mc":         MethodMonteCarlo,
	}
	for in, want := range tests {
		got, err := ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMethod("finite-difference")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestEnginePriceDispatch(t *testing.T) {
	e := NewEngine(Config{Seed: 7}, metrics.NewRecorder(prometheus.NewRegistry()))
	c := referenceCall(t)
	ctx := context.Background()

	analytic, err := e.Price(ctx, c, MethodAnalytic, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 10.4506, analytic, 1e-4)

	tree, err := e.Price(ctx, c, MethodTree, Options{Steps: 400})
	require.NoError(t, err)
	assert.InDelta(t, analytic, tree, 0.02)

	mc, err := e.Price(ctx, c, MethodMonteCarlo, Options{Simulations: 50000})
	require.NoError(t, err)
	assert.InDelta(t, analytic, mc, 0.3)

	again, err := e.Price(ctx, c, MethodMonteCarlo, Options{Simulations: 50000})
	require.NoError(t, err)
	assert.Equal(t, mc, again, "seeded engine must be reproducible")

	_, err = e.Price(ctx, c, Method("lattice"), Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestEngineLimits(t *testing.T) {
	e := NewEngine(Config{}, nil)
	c := referenceCall(t)

	_, err := e.Price(context.Background(), c, MethodTree, Options{Steps: MaxTreeSteps + 1})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))

	_, err = e.Price(context.Background(), c, MethodMonteCarlo, Options{Simulations: MaxSimulations + 1})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))

	_, err = e.Price(context.Background(), c, MethodTree, Options{Steps: -3})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestEngineHonorsCanceledContext(t *testing.T) {
	e := NewEngine(Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Price(ctx, referenceCall(t), MethodAnalytic, Options{})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = e.PriceAll(ctx, referenceCall(t), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnginePriceAll(t *testing.T) {
	e := NewEngine(Config{TreeSteps: 200, Simulations: 20000}, nil).
		WithSourceFactory(func() rand.Source { return rand.NewPCG(3, 4) })

	v, err := e.PriceAll(context.Background(), referenceCall(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, 200, v.TreeSteps)
	assert.Equal(t, 20000, v.MonteCarlo.Simulations)
	assert.InDelta(t, v.Analytic, v.Tree, 0.03)
	assert.InDelta(t, v.Analytic, v.MonteCarlo.Price, 5*v.MonteCarlo.StdErr)
	assert.InDelta(t, 0.6368, v.Greeks.Delta, 1e-3)
	assert.InDelta(t, v.Greeks.Theta/365, v.DailyTheta, 1e-12)
}

func TestEnginePriceAllInvalidContract(t *testing.T) {
	c := referenceCall(t)
	c.UnderlyingPrice = -1

	_, err := NewEngine(Config{}, nil).PriceAll(context.Background(), c, Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidContract))
	assert.Contains(t, err.Error(), "analytic")
}

func TestEngineRecommendAndImpliedVol(t *testing.T) {
	e := NewEngine(Config{}, nil)
	ctx := context.Background()
	c := referenceCall(t)

	s, err := e.Recommend(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, models.StrategyStraddle, s.Name)

	vol, err := e.ImpliedVolatility(ctx, c, 10.450583572185565)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, vol, 1e-6)
}

func TestSeededSources(t *testing.T) {
	fixed := SeededSources(11)
	assert.Equal(t, fixed().Uint64(), fixed().Uint64())

	random := SeededSources(0)
	assert.NotEqual(t, random().Uint64(), random().Uint64())
}

func TestEngineRejectsWhenSaturated(t *testing.T) {
	e := NewEngine(Config{Seed: 1, MaxConcurrent: 1, Overload: backpressure.Reject}, nil)
	c := referenceCall(t)
	ctx := context.Background()

	release, err := e.limiter.Acquire(ctx)
	require.NoError(t, err)

	_, err = e.Price(ctx, c, MethodTree, Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeResourceExhausted))
	_, err = e.EstimateMonteCarlo(ctx, c, Options{Simulations: 100})
	assert.True(t, errors.IsType(err, errors.ErrorTypeResourceExhausted))

	// analytic pricing is not throttled
	_, err = e.Price(ctx, c, MethodAnalytic, Options{})
	assert.NoError(t, err)

	release()
	_, err = e.Price(ctx, c, MethodTree, Options{})
	assert.NoError(t, err)
}
