// Command optionsctl prices contracts and runs risk tools from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rzzdr/options-engine/internal/backtest"
	"github.com/rzzdr/options-engine/internal/marketdata"
	"github.com/rzzdr/options-engine/internal/risk"
	"github.com/rzzdr/options-engine/internal/valuation"
	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
)

const usage = `usage: optionsctl <command> [flags]

commands:
  price        price a contract (-method analytic|tree|montecarlo)
  greeks       analytic Greeks of a contract
  recommend    suggest a strategy for a contract
  implied-vol  volatility implied by a market price
  backtest     replay CSV closes through a contract selector
  var          Value at Risk of returns or CSV closes
`

func main() {
	logger.Init("error", "development")

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "optionsctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.InvalidArgument(strings.TrimSpace(usage))
	}

	switch args[0] {
	case "price":
		return runPrice(ctx, args[1:], out)
	case "greeks":
		return runGreeks(ctx, args[1:], out)
	case "recommend":
		return runRecommend(ctx, args[1:], out)
	case "implied-vol":
		return runImpliedVol(ctx, args[1:], out)
	case "backtest":
		return runBacktest(args[1:], out)
	case "var":
		return runVaR(args[1:], out)
	default:
		return errors.InvalidArgumentf("unknown command %q\n%s", args[0], usage)
	}
}

type contractFlags struct {
	underlying, strike, expiry, rate, vol float64
	optType                               string
}

func (f *contractFlags) register(fs *flag.FlagSet, withUnderlying bool) {
	if withUnderlying {
		fs.Float64Var(&f.underlying, "s", 100, "underlying price")
		fs.Float64Var(&f.strike, "k", 100, "strike")
	}
	fs.Float64Var(&f.expiry, "t", 1, "time to expiry in years")
	fs.Float64Var(&f.rate, "r", 0.05, "risk-free rate")
	fs.Float64Var(&f.vol, "vol", 0.2, "volatility")
	fs.StringVar(&f.optType, "type", "call", "call or put")
}

func (f *contractFlags) contract() (models.Contract, error) {
	t, err := models.ParseOptionType(f.optType)
	if err != nil {
		return models.Contract{}, err
	}
	return models.Contract{
		UnderlyingPrice: f.underlying,
		Strike:          f.strike,
		TimeToExpiry:    f.expiry,
		RiskFreeRate:    f.rate,
		Volatility:      f.vol,
		OptionType:      t,
	}, nil
}

func parse(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return errors.WithType(err, errors.ErrorTypeInvalidArgument)
	}
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runPrice(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	var cf contractFlags
	cf.register(fs, true)
	method := fs.String("method", "analytic", "analytic, tree or montecarlo")
	steps := fs.Int("steps", 0, "tree steps (0 uses the default)")
	sims := fs.Int("sims", 0, "Monte Carlo simulations (0 uses the default)")
	seed := fs.Uint64("seed", 0, "Monte Carlo seed (0 is random)")
	all := fs.Bool("all", false, "price with every method and include the Greeks")
	if err := parse(fs, args); err != nil {
		return err
	}

	c, err := cf.contract()
	if err != nil {
		return err
	}
	engine := valuation.NewEngine(valuation.Config{Seed: *seed}, nil)
	opts := valuation.Options{Steps: *steps, Simulations: *sims}

	if *all {
		v, err := engine.PriceAll(ctx, c, opts)
		if err != nil {
			return err
		}
		return writeJSON(out, v)
	}

	m, err := valuation.ParseMethod(*method)
	if err != nil {
		return err
	}
	if m == valuation.MethodMonteCarlo {
		est, err := engine.EstimateMonteCarlo(ctx, c, opts)
		if err != nil {
			return err
		}
		return writeJSON(out, est)
	}
	price, err := engine.Price(ctx, c, m, opts)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]interface{}{"method": m, "price": price})
}

func runGreeks(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("greeks", flag.ContinueOnError)
	var cf contractFlags
	cf.register(fs, true)
	if err := parse(fs, args); err != nil {
		return err
	}

	c, err := cf.contract()
	if err != nil {
		return err
	}
	g, err := valuation.NewEngine(valuation.Config{}, nil).Greeks(ctx, c)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]interface{}{"greeks": g, "daily_theta": g.DailyTheta()})
}

func runRecommend(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	var cf contractFlags
	cf.register(fs, true)
	if err := parse(fs, args); err != nil {
		return err
	}

	c, err := cf.contract()
	if err != nil {
		return err
	}
	s, err := valuation.NewEngine(valuation.Config{}, nil).Recommend(ctx, c)
	if err != nil {
		return err
	}
	return writeJSON(out, s)
}

func runImpliedVol(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("implied-vol", flag.ContinueOnError)
	var cf contractFlags
	cf.register(fs, true)
	price := fs.Float64("price", 0, "observed market price")
	if err := parse(fs, args); err != nil {
		return err
	}

	c, err := cf.contract()
	if err != nil {
		return err
	}
	vol, err := valuation.NewEngine(valuation.Config{}, nil).ImpliedVolatility(ctx, c, *price)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]float64{"implied_volatility": vol})
}

func runBacktest(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	var cf contractFlags
	cf.register(fs, false)
	csvPath := fs.String("csv", "", "CSV file with date, close and optional symbol columns")
	symbol := fs.String("symbol", "", "symbol to select from the CSV")
	strike := fs.Float64("strike", 0, "fixed strike (0 strikes at the money)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *csvPath == "" {
		return errors.InvalidArgument("-csv is required")
	}

	series, err := marketdata.LoadCSV(*csvPath, *symbol)
	if err != nil {
		return err
	}
	template, err := cf.contract()
	if err != nil {
		return err
	}

	selector := backtest.AtTheMoney(template)
	if *strike != 0 {
		selector = backtest.FixedStrike(template, *strike)
	}
	result, err := backtest.Run(series, selector)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]interface{}{"result": result, "summary": result.Summary()})
}

func runVaR(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("var", flag.ContinueOnError)
	returnsFlag := fs.String("returns", "", "comma separated returns")
	csvPath := fs.String("csv", "", "CSV of closes to derive returns from")
	symbol := fs.String("symbol", "", "symbol to select from the CSV")
	confidence := fs.Float64("confidence", risk.DefaultConfidenceLevel, "confidence level in (0, 1)")
	method := fs.String("method", "historical", "historical, parametric or montecarlo")
	value := fs.Float64("value", 1, "position value the VaR is scaled to")
	seed := fs.Uint64("seed", 0, "Monte Carlo seed (0 is random)")
	if err := parse(fs, args); err != nil {
		return err
	}

	var returns []float64
	switch {
	case *returnsFlag != "":
		for _, field := range strings.Split(*returnsFlag, ",") {
			r, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return errors.InvalidArgumentf("invalid return %q", field)
			}
			returns = append(returns, r)
		}
	case *csvPath != "":
		series, err := marketdata.LoadCSV(*csvPath, *symbol)
		if err != nil {
			return err
		}
		if returns, err = (risk.Portfolio{Positions: series.Closes()}).Returns(); err != nil {
			return err
		}
	default:
		return errors.InvalidArgument("one of -returns or -csv is required")
	}

	m, err := risk.ParseVaRMethod(*method)
	if err != nil {
		return err
	}
	if !(*confidence > 0 && *confidence < 1) {
		return errors.InvalidArgumentf("confidence must be in (0, 1), got %v", *confidence)
	}
	calc := risk.NewVaRCalculator(m, *confidence, len(returns))
	calc.SetSeed(*seed)

	result, err := calc.Calculate(returns, *value)
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}
