package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rzzdr/options-engine/internal/backtest"
	"github.com/rzzdr/options-engine/internal/marketdata"
	"github.com/rzzdr/options-engine/internal/risk"
	"github.com/rzzdr/options-engine/internal/valuation"
	"github.com/rzzdr/options-engine/pkg/metrics"
	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
)

// Version is reported by the health check
var Version = "dev"

// RiskSettings are the VaR defaults a request may override
type RiskSettings struct {
	Method           risk.VaRMethod
	ConfidenceLevel  float64
	HistoricalWindow int
	SimulationRuns   int
	Seed             uint64
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	engine   *valuation.Engine
	provider marketdata.Provider
	risk     RiskSettings
	recorder *metrics.Recorder
	log      *logger.Logger
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance. provider may be nil, in which
// case history and backtest requests report the data as unavailable.
func NewHandlers(engine *valuation.Engine, provider marketdata.Provider, riskSettings RiskSettings, recorder *metrics.Recorder) *Handlers {
	return &Handlers{
		engine:   engine,
		provider: provider,
		risk:     riskSettings,
		recorder: recorder,
		log:      logger.GetLogger("api.handlers"),
		now:      time.Now,
	}
}

type priceRequest struct {
	models.Contract
	valuation.Options
	Method string `json:"method"`
}

type priceResponse struct {
	Method      valuation.Method `json:"method"`
	Price       float64          `json:"price"`
	StdErr      *float64         `json:"std_err,omitempty"`
	Simulations int              `json:"simulations,omitempty"`
}

type greeksResponse struct {
	Greeks     models.Greeks `json:"greeks"`
	DailyTheta float64       `json:"daily_theta"`
}

type strategyResponse struct {
	Strategy models.Strategy `json:"strategy"`
	Greeks   models.Greeks   `json:"greeks"`
}

type impliedVolRequest struct {
	models.Contract
	MarketPrice float64 `json:"market_price" binding:"required"`
}

type varRequest struct {
	Returns         []float64 `json:"returns"`
	Positions       []float64 `json:"positions"`
	PositionValue   float64   `json:"position_value"`
	Method          string    `json:"method"`
	ConfidenceLevel float64   `json:"confidence_level"`
}

type backtestRequest struct {
	Symbol   string          `json:"symbol" binding:"required"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Interval string          `json:"interval"`
	Strike   float64         `json:"strike"` // zero strikes every contract at the money
	Contract models.Contract `json:"contract"`
}

type backtestResponse struct {
	Result  backtest.Result  `json:"result"`
	Summary backtest.Summary `json:"summary"`
}

// HealthCheckHandler returns a simple health check response
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// PriceHandler prices one contract with the requested method
func (h *Handlers) PriceHandler(c *gin.Context) {
	var req priceRequest
	if !h.bind(c, &req) {
		return
	}
	method, err := valuation.ParseMethod(req.Method)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if method == valuation.MethodMonteCarlo {
		est, err := h.engine.EstimateMonteCarlo(ctx, req.Contract, req.Options)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, priceResponse{
			Method:      method,
			Price:       est.Price,
			StdErr:      &est.StdErr,
			Simulations: est.Simulations,
		})
		return
	}

	price, err := h.engine.Price(ctx, req.Contract, method, req.Options)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, priceResponse{Method: method, Price: price})
}

// GreeksHandler returns the analytic Greeks of one contract
func (h *Handlers) GreeksHandler(c *gin.Context) {
	var contract models.Contract
	if !h.bind(c, &contract) {
		return
	}

	g, err := h.engine.Greeks(c.Request.Context(), contract)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, greeksResponse{Greeks: g, DailyTheta: g.DailyTheta()})
}

// ValuationHandler prices one contract with every engine
func (h *Handlers) ValuationHandler(c *gin.Context) {
	var req priceRequest
	if !h.bind(c, &req) {
		return
	}

	v, err := h.engine.PriceAll(c.Request.Context(), req.Contract, req.Options)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// StrategyHandler recommends a strategy and reports its combined Greeks
func (h *Handlers) StrategyHandler(c *gin.Context) {
	var contract models.Contract
	if !h.bind(c, &contract) {
		return
	}

	ctx := c.Request.Context()
	s, err := h.engine.Recommend(ctx, contract)
	if err != nil {
		h.fail(c, err)
		return
	}

	quantities := make([]float64, len(s.Contracts))
	for i := range quantities {
		quantities[i] = 1
	}
	g, err := risk.PortfolioGreeks(s.Contracts, quantities)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, strategyResponse{Strategy: s, Greeks: g})
}

// ImpliedVolHandler solves for the volatility implied by a market price
func (h *Handlers) ImpliedVolHandler(c *gin.Context) {
	var req impliedVolRequest
	if !h.bind(c, &req) {
		return
	}

	vol, err := h.engine.ImpliedVolatility(c.Request.Context(), req.Contract, req.MarketPrice)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"implied_volatility": vol})
}

// VaRHandler computes VaR and Conditional VaR from returns or a position series
func (h *Handlers) VaRHandler(c *gin.Context) {
	var req varRequest
	if !h.bind(c, &req) {
		return
	}

	returns := req.Returns
	positionValue := req.PositionValue
	if len(returns) == 0 && len(req.Positions) > 0 {
		var err error
		if returns, err = (risk.Portfolio{Positions: req.Positions}).Returns(); err != nil {
			h.fail(c, err)
			return
		}
		if positionValue == 0 {
			positionValue = req.Positions[len(req.Positions)-1]
		}
	}
	if len(returns) == 0 {
		h.fail(c, errors.InvalidArgument("returns or positions are required"))
		return
	}

	calc, err := h.varCalculator(req.Method, req.ConfidenceLevel)
	if err != nil {
		h.fail(c, err)
		return
	}
	result, err := calc.Calculate(returns, positionValue)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.recorder.RecordVaR(result.Method, result.ConfidenceLevel, result.VaR)
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) varCalculator(method string, confidence float64) (*risk.VaRCalculator, error) {
	m := h.risk.Method
	if method != "" {
		parsed, err := risk.ParseVaRMethod(method)
		if err != nil {
			return nil, err
		}
		m = parsed
	}
	if confidence == 0 {
		confidence = h.risk.ConfidenceLevel
	} else if confidence <= 0 || confidence >= 1 {
		return nil, errors.InvalidArgumentf("confidence level must be in (0, 1), got %v", confidence)
	}

	calc := risk.NewVaRCalculator(m, confidence, h.risk.HistoricalWindow)
	calc.SetSimulationRuns(h.risk.SimulationRuns)
	calc.SetSeed(h.risk.Seed)
	return calc, nil
}

// BacktestHandler replays fetched history through a fixed-strike or
// at-the-money selector
func (h *Handlers) BacktestHandler(c *gin.Context) {
	var req backtestRequest
	if !h.bind(c, &req) {
		return
	}

	series, err := h.fetch(c.Request.Context(), req.Symbol, req.Start, req.End, req.Interval)
	if err != nil {
		h.fail(c, err)
		return
	}

	selector := backtest.AtTheMoney(req.Contract)
	if req.Strike != 0 {
		selector = backtest.FixedStrike(req.Contract, req.Strike)
	}
	result, err := backtest.Run(series, selector)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, backtestResponse{Result: result, Summary: result.Summary()})
}

// HistoryHandler returns closing prices for a symbol
func (h *Handlers) HistoryHandler(c *gin.Context) {
	series, err := h.fetch(c.Request.Context(), c.Param("symbol"), c.Query("start"), c.Query("end"), c.Query("interval"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// fetch resolves the date range, defaulting to the year up to today
func (h *Handlers) fetch(ctx context.Context, symbol, start, end, interval string) (models.PriceSeries, error) {
	if h.provider == nil {
		return models.PriceSeries{}, errors.DataUnavailable("no market data provider configured")
	}

	endTime := h.now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	if end != "" {
		t, err := marketdata.ParseDate(end)
		if err != nil {
			return models.PriceSeries{}, err
		}
		endTime = t
	}
	startTime := endTime.AddDate(-1, 0, 0)
	if start != "" {
		t, err := marketdata.ParseDate(start)
		if err != nil {
			return models.PriceSeries{}, err
		}
		startTime = t
	}

	return h.provider.Fetch(ctx, strings.ToUpper(strings.TrimSpace(symbol)), startTime, endTime, interval)
}

func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeUnknown {
			err = errors.WithType(errors.Wrap(err, "invalid request body"), errors.ErrorTypeInvalidArgument)
		}
		h.fail(c, err)
		return false
	}
	return true
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		h.log.Debugw("request rejected", "path", c.FullPath(), "status", status, "error", err)
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"type":  errors.TypeOf(err).String(),
	})
}

// StatusFor maps an error onto the HTTP status reported to clients
func StatusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	switch errors.TypeOf(err) {
	case errors.ErrorTypeInvalidArgument, errors.ErrorTypeInvalidContract:
		return http.StatusBadRequest
	case errors.ErrorTypeDataUnavailable, errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeNumericOverflow:
		return http.StatusUnprocessableEntity
	case errors.ErrorTypeResourceExhausted:
		return http.StatusServiceUnavailable
	case errors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrorTypeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
