package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runJSON(t *testing.T, args ...string) map[string]interface{} {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), args, &out))

	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	return v
}

func TestPriceCommand(t *testing.T) {
	v := runJSON(t, "price")
	assert.Equal(t, "analytic", v["method"])
	assert.InDelta(t, 10.450583572185565, v["price"], 1e-9)

	v = runJSON(t, "price", "-type", "put", "-method", "tree", "-steps", "1000")
	assert.InDelta(t, 5.573526022256971, v["price"], 0.01)

	v = runJSON(t, "price", "-method", "montecarlo", "-sims", "5000", "-seed", "3")
	assert.Greater(t, v["std_err"], 0.0)
	assert.Equal(t, 5000.0, v["simulations"])

	v = runJSON(t, "price", "-all", "-sims", "2000", "-seed", "3")
	assert.Contains(t, v, "greeks")
	assert.Contains(t, v, "monte_carlo")
}

func TestGreeksRecommendImpliedVol(t *testing.T) {
	v := runJSON(t, "greeks", "-s", "100", "-k", "100")
	greeks := v["greeks"].(map[string]interface{})
	assert.InDelta(t, 0.6368, greeks["delta"], 1e-3)

	v = runJSON(t, "recommend")
	assert.Equal(t, "Straddle", v["name"])

	v = runJSON(t, "implied-vol", "-price", "10.450583572185565")
	assert.InDelta(t, 0.2, v["implied_volatility"], 1e-6)
}

func TestBacktestAndVaRFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	csv := "date,close,symbol\n2024-01-03,110,AAPL\n2024-01-02,100,AAPL\n2024-01-04,99,AAPL\n2024-01-02,50,MSFT\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	v := runJSON(t, "backtest", "-csv", path, "-symbol", "AAPL", "-strike", "100")
	result := v["result"].(map[string]interface{})
	assert.Equal(t, []interface{}{0.0, 10.0, -1.0}, result["pnl"])

	// closes 100, 110, 99 give returns 0.1 and -0.1
	v = runJSON(t, "var", "-csv", path, "-symbol", "AAPL", "-confidence", "0.75", "-value", "1000")
	assert.InDelta(t, 100, v["var"], 1e-9)
	assert.Equal(t, 2.0, v["observations"])

	v = runJSON(t, "var", "-returns", "0.03,-0.02,0.01,-0.04", "-confidence", "0.75")
	assert.InDelta(t, 0.02, v["var"], 1e-12)
	assert.InDelta(t, 0.03, v["conditional_var"], 1e-12)
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		kind errors.ErrorType
	}{
		{"no command", nil, errors.ErrorTypeInvalidArgument},
		{"unknown command", []string{"hedge"}, errors.ErrorTypeInvalidArgument},
		{"bad option type", []string{"price", "-type", "straddle"}, errors.ErrorTypeInvalidContract},
		{"bad flag", []string{"greeks", "-nope"}, errors.ErrorTypeInvalidArgument},
		{"invalid contract", []string{"greeks", "-vol", "0"}, errors.ErrorTypeInvalidContract},
		{"missing csv", []string{"backtest"}, errors.ErrorTypeInvalidArgument},
		{"unreadable csv", []string{"backtest", "-csv", "/does/not/exist.csv"}, errors.ErrorTypeNotFound},
		{"bad return", []string{"var", "-returns", "0.1,abc"}, errors.ErrorTypeInvalidArgument},
		{"no var input", []string{"var"}, errors.ErrorTypeInvalidArgument},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := run(context.Background(), tc.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.Equal(t, tc.kind, errors.TypeOf(err), "%v", err)
		})
	}
}
