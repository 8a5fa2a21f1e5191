// Package backtest replays a price series through a contract selector and
// records the naive P&L of each point.
package backtest

import (
	"math"
	"time"

	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Selector picks the contract to hold for a given underlying price
type Selector func(price float64) (models.Contract, error)

// Result holds one P&L entry per input point, in the same order
type Result struct {
	Symbol string      `json:"symbol"`
	Times  []time.Time `json:"times"`
	PnL    []float64   `json:"pnl"`
}

// Summary describes the distribution of a backtest's P&L
type Summary struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Run asks selector for a contract at every point and records price minus strike
func Run(series models.PriceSeries, selector Selector) (Result, error) {
	if selector == nil {
		return Result{}, errors.InvalidArgument("selector is required")
	}

	res := Result{
		Symbol: series.Symbol,
		Times:  make([]time.Time, 0, series.Len()),
		PnL:    make([]float64, 0, series.Len()),
	}
	for i, p := range series.Points {
		c, err := selector(p.Close)
		if err != nil {
			return Result{}, errors.Wrapf(err, "select contract at point %d", i)
		}
		res.Times = append(res.Times, p.Time)
		res.PnL = append(res.PnL, p.Close-c.Strike)
	}
	return res, nil
}

// Summary computes aggregate statistics over the P&L
func (r Result) Summary() Summary {
	s := Summary{Count: len(r.PnL)}
	if s.Count == 0 {
		return s
	}
	s.Total = floats.Sum(r.PnL)
	s.Min = floats.Min(r.PnL)
	s.Max = floats.Max(r.PnL)
	if s.Count == 1 {
		s.Mean = s.Total
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(r.PnL, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	return s
}

// FixedStrike returns a selector that always holds the same contract shape
// with the strike set to the given value
func FixedStrike(template models.Contract, strike float64) Selector {
	return func(price float64) (models.Contract, error) {
		c := template
		c.UnderlyingPrice = price
		c.Strike = strike
		return c, c.Validate()
	}
}

// AtTheMoney returns a selector that strikes every contract at the current price
func AtTheMoney(template models.Contract) Selector {
	return func(price float64) (models.Contract, error) {
		c := template
		c.UnderlyingPrice = price
		c.Strike = price
		return c, c.Validate()
	}
}
