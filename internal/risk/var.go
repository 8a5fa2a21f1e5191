package risk

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidenceLevel is the VaR confidence used when none is configured
const DefaultConfidenceLevel = 0.95

// HistoricalVaR returns the loss at the (1-confidence) quantile of returns,
// expressed as a positive number when that quantile is a loss.
func HistoricalVaR(returns []float64, confidence float64) (float64, error) {
	if err := checkVaRInputs(returns, confidence); err != nil {
		return 0, err
	}
	sorted := sortedCopy(returns)
	return -sorted[quantileIndex(len(sorted), confidence)], nil
}

func checkVaRInputs(returns []float64, confidence float64) error {
	if len(returns) == 0 {
		return errors.InvalidArgument("returns must not be empty")
	}
	if !(confidence > 0 && confidence < 1) {
		return errors.InvalidArgument(fmt.Sprintf("confidence must be in (0, 1), got %v", confidence))
	}
	return nil
}

func sortedCopy(returns []float64) []float64 {
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	return sorted
}

func quantileIndex(n int, confidence float64) int {
	index := int(math.Floor((1 - confidence) * float64(n)))
	if index < 0 {
		return 0
	}
	if index > n-1 {
		return n - 1
	}
	return index
}

// tailMean is the average of the sorted returns up to and including the VaR point
func tailMean(sorted []float64, confidence float64) float64 {
	return stat.Mean(sorted[:quantileIndex(len(sorted), confidence)+1], nil)
}

// VaRMethod defines the method used for VaR calculation
type VaRMethod int

const (
	// MethodHistorical uses the empirical return distribution
	MethodHistorical VaRMethod = iota
	// MethodParametric assumes normally distributed returns
	MethodParametric
	// MethodMonteCarlo simulates normal returns fitted to the sample
	MethodMonteCarlo
)

func (m VaRMethod) String() string {
	switch m {
	case MethodParametric:
		return "parametric"
	case MethodMonteCarlo:
		return "montecarlo"
	default:
		return "historical"
	}
}

// ParseVaRMethod maps a method name onto a VaRMethod
func ParseVaRMethod(s string) (VaRMethod, error) {
	switch strings.ToLower(s) {
	case "", "historical":
		return MethodHistorical, nil
	case "parametric":
		return MethodParametric, nil
	case "montecarlo", "monte_carlo":
		return MethodMonteCarlo, nil
	default:
		return 0, errors.InvalidArgument(fmt.Sprintf("unknown VaR method %q", s))
	}
}

// VaRCalculator calculates Value at Risk and Conditional VaR over a position
type VaRCalculator struct {
	method           VaRMethod
	confidenceLevel  float64
	historicalWindow int
	simulationRuns   int
	seed             uint64
	log              *logger.Logger
}

// NewVaRCalculator creates a new Value at Risk calculator
func NewVaRCalculator(method VaRMethod, confidenceLevel float64, historicalWindow int) *VaRCalculator {
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		confidenceLevel = DefaultConfidenceLevel
	}

	if historicalWindow <= 0 {
		historicalWindow = 252 // Default to 1 year of trading days
	}

	return &VaRCalculator{
		method:           method,
		confidenceLevel:  confidenceLevel,
		historicalWindow: historicalWindow,
		simulationRuns:   10000,
		log:              logger.GetLogger("risk.var"),
	}
}

// SetSimulationRuns sets the number of simulation runs for Monte Carlo VaR
func (v *VaRCalculator) SetSimulationRuns(runs int) {
	if runs > 0 {
		v.simulationRuns = runs
	}
}

// SetSeed fixes the Monte Carlo seed. Zero draws a fresh seed per calculation.
func (v *VaRCalculator) SetSeed(seed uint64) {
	v.seed = seed
}

// ConfidenceLevel returns the configured confidence level
func (v *VaRCalculator) ConfidenceLevel() float64 {
	return v.confidenceLevel
}

// Calculate computes VaR and Conditional VaR for positionValue using the
// configured method. Both are reported in currency units.
func (v *VaRCalculator) Calculate(returns []float64, positionValue float64) (models.VaRResult, error) {
	if err := checkVaRInputs(returns, v.confidenceLevel); err != nil {
		return models.VaRResult{}, err
	}
	if positionValue <= 0 || math.IsInf(positionValue, 0) || math.IsNaN(positionValue) {
		return models.VaRResult{}, errors.InvalidArgument(fmt.Sprintf("position value must be positive, got %v", positionValue))
	}

	if len(returns) > v.historicalWindow {
		returns = returns[len(returns)-v.historicalWindow:]
	}

	var varReturn, cvarReturn float64
	switch v.method {
	case MethodParametric:
		mean, std, err := fitNormal(returns)
		if err != nil {
			return models.VaRResult{}, err
		}
		z := distuv.UnitNormal.Quantile(v.confidenceLevel)
		varReturn = -mean + z*std
		cvarReturn = -mean + std*distuv.UnitNormal.Prob(z)/(1-v.confidenceLevel)
	case MethodMonteCarlo:
		mean, std, err := fitNormal(returns)
		if err != nil {
			return models.VaRResult{}, err
		}
		simulated := v.simulate(mean, std)
		varReturn = -simulated[quantileIndex(len(simulated), v.confidenceLevel)]
		cvarReturn = -tailMean(simulated, v.confidenceLevel)
	default:
		sorted := sortedCopy(returns)
		varReturn = -sorted[quantileIndex(len(sorted), v.confidenceLevel)]
		cvarReturn = -tailMean(sorted, v.confidenceLevel)
	}

	result := models.VaRResult{
		Method:          v.method.String(),
		ConfidenceLevel: v.confidenceLevel,
		VaR:             varReturn * positionValue,
		ConditionalVaR:  cvarReturn * positionValue,
		Observations:    len(returns),
	}
	v.log.Debugw("VaR calculated", "method", result.Method, "var", result.VaR, "cvar", result.ConditionalVaR)
	return result, nil
}

func fitNormal(returns []float64) (float64, float64, error) {
	if len(returns) < 2 {
		return 0, 0, errors.InvalidArgument("at least two returns are needed to fit a distribution")
	}
	mean, std := stat.MeanStdDev(returns, nil)
	return mean, std, nil
}

// simulate draws sorted normal returns with the given moments
func (v *VaRCalculator) simulate(mean, std float64) []float64 {
	seed := v.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	normal := distuv.Normal{Mu: mean, Sigma: std, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}

	out := make([]float64, v.simulationRuns)
	for i := range out {
		out[i] = normal.Rand()
	}
	sort.Float64s(out)
	return out
}
