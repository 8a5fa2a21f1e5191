// Package valuation is the service layer over the pure pricing and risk
// functions. It applies configured defaults, owns random source creation for
// Monte Carlo runs, and records metrics and logs for every call.
package valuation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rzzdr/options-engine/internal/pricing"
	"github.com/rzzdr/options-engine/internal/risk"
	"github.com/rzzdr/options-engine/internal/strategy"
	"github.com/rzzdr/options-engine/pkg/metrics"
	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/backpressure"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
)

// Method selects a pricing engine
type Method string

const (
	MethodAnalytic   Method = "analytic"
	MethodTree       Method = "tree"
	MethodMonteCarlo Method = "montecarlo"
)

// Upper bounds on per-call work accepted from callers
const (
	MaxTreeSteps   = 20000
	MaxSimulations = 5_000_000
)

// ParseMethod maps a method name onto a Method, defaulting to analytic
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodAnalytic:
		return MethodAnalytic, nil
	case MethodTree, "binomial":
		return MethodTree, nil
	case MethodMonteCarlo, "monte_carlo", "mc":
		return MethodMonteCarlo, nil
	default:
		return "", errors.InvalidArgument(fmt.Sprintf("unknown pricing method %q", s))
	}
}

// SourceFactory returns a new random source for each Monte Carlo run
type SourceFactory func() rand.Source

// SeededSources returns a factory producing identically seeded PCG sources,
// so repeated runs are reproducible. A zero seed draws a fresh seed each call.
func SeededSources(seed uint64) SourceFactory {
	if seed == 0 {
		return func() rand.Source {
			return rand.NewPCG(rand.Uint64(), rand.Uint64())
		}
	}
	return func() rand.Source {
		return rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)
	}
}

// Config holds engine defaults
type Config struct {
	TreeSteps     int
	Simulations   int
	Seed          uint64
	MaxConcurrent int64 // simultaneous tree and Monte Carlo runs, 0 is unlimited
	Overload      backpressure.Strategy
}

// Options override the engine defaults for one call. Zero values keep the defaults.
type Options struct {
	Steps       int `json:"steps,omitempty"`
	Simulations int `json:"simulations,omitempty"`
}

// Valuation is the full set of prices and sensitivities for one contract
type Valuation struct {
	Contract   models.Contract            `json:"contract"`
	Analytic   float64                    `json:"analytic"`
	Tree       float64                    `json:"tree"`
	TreeSteps  int                        `json:"tree_steps"`
	MonteCarlo pricing.MonteCarloEstimate `json:"monte_carlo"`
	Greeks     models.Greeks              `json:"greeks"`
	DailyTheta float64                    `json:"daily_theta"`
}

// Engine prices contracts with configured defaults
type Engine struct {
	treeSteps   int
	simulations int
	newSource   SourceFactory
	limiter     *backpressure.Controller
	recorder    *metrics.Recorder
	log         *logger.Logger
}

// NewEngine creates a new valuation engine
func NewEngine(cfg Config, recorder *metrics.Recorder) *Engine {
	if cfg.TreeSteps <= 0 {
		cfg.TreeSteps = pricing.DefaultTreeSteps
	}
	if cfg.Simulations <= 0 {
		cfg.Simulations = pricing.DefaultSimulations
	}

	limiter := backpressure.NewController(backpressure.Config{
		Name:          "pricing",
		MaxConcurrent: cfg.MaxConcurrent,
		Strategy:      cfg.Overload,
	})

	return &Engine{
		treeSteps:   cfg.TreeSteps,
		simulations: cfg.Simulations,
		newSource:   SeededSources(cfg.Seed),
		limiter:     limiter,
		recorder:    recorder,
		log:         logger.GetLogger("valuation.engine"),
	}
}

// WithSourceFactory replaces the Monte Carlo source factory
func (e *Engine) WithSourceFactory(f SourceFactory) *Engine {
	if f != nil {
		e.newSource = f
	}
	return e
}

func (e *Engine) resolve(opts Options) (int, int, error) {
	steps, sims := e.treeSteps, e.simulations
	if opts.Steps != 0 {
		steps = opts.Steps
	}
	if opts.Simulations != 0 {
		sims = opts.Simulations
	}
	if steps > MaxTreeSteps {
		return 0, 0, errors.InvalidArgument(fmt.Sprintf("tree steps %d exceed the limit of %d", steps, MaxTreeSteps))
	}
	if sims > MaxSimulations {
		return 0, 0, errors.InvalidArgument(fmt.Sprintf("simulations %d exceed the limit of %d", sims, MaxSimulations))
	}
	return steps, sims, nil
}

func (e *Engine) observe(method Method, start time.Time, err error) {
	e.recorder.RecordPricing(string(method), err, time.Since(start))
	if err != nil {
		e.log.Debugw("pricing failed", "method", method, "error", err)
	}
}

// Price values c with one engine
func (e *Engine) Price(ctx context.Context, c models.Contract, method Method, opts Options) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	steps, sims, err := e.resolve(opts)
	if err != nil {
		return 0, err
	}

	if method == MethodTree || method == MethodMonteCarlo {
		release, err := e.limiter.Acquire(ctx)
		if err != nil {
			return 0, err
		}
		defer release()
	}

	start := time.Now()
	var price float64
	switch method {
	case MethodAnalytic:
		price, err = pricing.PriceAnalytic(c)
	case MethodTree:
		price, err = pricing.PriceTree(c, steps)
	case MethodMonteCarlo:
		price, err = pricing.PriceMonteCarlo(c, sims, e.newSource())
	default:
		err = errors.InvalidArgument(fmt.Sprintf("unknown pricing method %q", method))
	}
	e.observe(method, start, err)
	return price, err
}

// EstimateMonteCarlo returns the simulated price with its standard error
func (e *Engine) EstimateMonteCarlo(ctx context.Context, c models.Contract, opts Options) (pricing.MonteCarloEstimate, error) {
	if err := ctx.Err(); err != nil {
		return pricing.MonteCarloEstimate{}, err
	}
	_, sims, err := e.resolve(opts)
	if err != nil {
		return pricing.MonteCarloEstimate{}, err
	}

	release, err := e.limiter.Acquire(ctx)
	if err != nil {
		return pricing.MonteCarloEstimate{}, err
	}
	defer release()

	start := time.Now()
	est, err := pricing.EstimateMonteCarlo(c, sims, e.newSource())
	e.observe(MethodMonteCarlo, start, err)
	return est, err
}

// Greeks returns the analytic sensitivities of c
func (e *Engine) Greeks(ctx context.Context, c models.Contract) (models.Greeks, error) {
	if err := ctx.Err(); err != nil {
		return models.Greeks{}, err
	}
	return risk.CalculateGreeks(c)
}

// Recommend runs the strategy advisor on c
func (e *Engine) Recommend(ctx context.Context, c models.Contract) (models.Strategy, error) {
	if err := ctx.Err(); err != nil {
		return models.Strategy{}, err
	}
	s, err := strategy.Recommend(c)
	if err == nil {
		e.log.Debugw("strategy recommended", "strategy", s.Name)
	}
	return s, err
}

// ImpliedVolatility solves for the volatility matching marketPrice
func (e *Engine) ImpliedVolatility(ctx context.Context, c models.Contract, marketPrice float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return risk.ImpliedVolatility(c, marketPrice)
}

// PriceAll values c with every engine and attaches the Greeks. The engines
// run one after another.
func (e *Engine) PriceAll(ctx context.Context, c models.Contract, opts Options) (Valuation, error) {
	steps, _, err := e.resolve(opts)
	if err != nil {
		return Valuation{}, err
	}

	v := Valuation{Contract: c, TreeSteps: steps}
	if v.Analytic, err = e.Price(ctx, c, MethodAnalytic, opts); err != nil {
		return Valuation{}, errors.Wrap(err, "analytic")
	}
	if v.Tree, err = e.Price(ctx, c, MethodTree, opts); err != nil {
		return Valuation{}, errors.Wrap(err, "tree")
	}
	if v.MonteCarlo, err = e.EstimateMonteCarlo(ctx, c, opts); err != nil {
		return Valuation{}, errors.Wrap(err, "monte carlo")
	}
	if v.Greeks, err = e.Greeks(ctx, c); err != nil {
		return Valuation{}, errors.Wrap(err, "greeks")
	}
	v.DailyTheta = v.Greeks.DailyTheta()

	e.log.Debugw("contract valued",
		"type", c.OptionType, "analytic", v.Analytic, "tree", v.Tree, "monte_carlo", v.MonteCarlo.Price)
	return v, nil
}
