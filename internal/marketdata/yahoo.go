package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rzzdr/options-engine/pkg/metrics"
	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/circuit"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	"golang.org/x/time/rate"
)

const yahooProviderName = "yahoo"

// YahooConfig configures the Yahoo Finance chart client
type YahooConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	RateBurst int
	Breaker   circuit.Config
}

// YahooProvider fetches closing prices from the Yahoo Finance chart API
type YahooProvider struct {
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *circuit.CircuitBreaker
	recorder *metrics.Recorder
	log      *logger.Logger
}

// NewYahooProvider creates a new Yahoo Finance provider
func NewYahooProvider(cfg YahooConfig, recorder *metrics.Recorder) *YahooProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}

	// client-side mistakes must not trip the breaker
	cfg.Breaker.IsSuccessful = func(err error) bool {
		return err == nil ||
			errors.IsType(err, errors.ErrorTypeDataUnavailable) ||
			errors.IsType(err, errors.ErrorTypeInvalidArgument)
	}
	cfg.Breaker.OnStateChange = func(name string, _, to circuit.State) {
		recorder.RecordBreakerState(name, int(to))
	}

	return &YahooProvider{
		baseURL:  cfg.BaseURL,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker:  circuit.NewCircuitBreaker(yahooProviderName, cfg.Breaker),
		recorder: recorder,
		log:      logger.GetLogger("marketdata.yahoo"),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch implements Provider
func (p *YahooProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, interval string) (models.PriceSeries, error) {
	symbol, interval, err := normalizeRequest(symbol, start, end, interval)
	if err != nil {
		return models.PriceSeries{}, err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return models.PriceSeries{}, errors.WithType(err, errors.ErrorTypeTimeout)
	}

	began := time.Now()
	series, err := circuit.Do(ctx, p.breaker, func(ctx context.Context) (models.PriceSeries, error) {
		return p.fetch(ctx, symbol, start, end, interval)
	})
	p.recorder.RecordMarketDataFetch(yahooProviderName, err, time.Since(began))
	if err != nil {
		p.log.Warnw("price history fetch failed", "symbol", symbol, "error", err)
		return models.PriceSeries{}, err
	}

	p.log.Debugw("price history fetched", "symbol", symbol, "points", series.Len(), "latency", time.Since(began))
	return series, nil
}

func (p *YahooProvider) fetch(ctx context.Context, symbol string, start, end time.Time, interval string) (models.PriceSeries, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", interval)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.PriceSeries{}, errors.Wrap(err, "build chart request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.PriceSeries{}, errors.WithType(errors.Wrapf(err, "request chart for %s", symbol), errors.ErrorTypeNetwork)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.PriceSeries{}, errors.DataUnavailable(fmt.Sprintf("no price data for %s", symbol))
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.PriceSeries{}, errors.ResourceExhausted("yahoo chart API rate limited the request")
	case resp.StatusCode != http.StatusOK:
		return models.PriceSeries{}, errors.Network(fmt.Sprintf("yahoo chart API returned %d for %s", resp.StatusCode, symbol))
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.PriceSeries{}, errors.WithType(errors.Wrap(err, "decode chart response"), errors.ErrorTypeInternal)
	}
	if body.Chart.Error != nil {
		return models.PriceSeries{}, errors.DataUnavailable(fmt.Sprintf("no price data for %s: %s", symbol, body.Chart.Error.Description))
	}

	series := models.PriceSeries{Symbol: symbol}
	for _, result := range body.Chart.Result {
		if len(result.Indicators.Quote) == 0 {
			continue
		}
		closes := result.Indicators.Quote[0].Close
		for i, ts := range result.Timestamp {
			if i >= len(closes) || closes[i] == nil || math.IsNaN(*closes[i]) {
				continue
			}
			series.Points = append(series.Points, models.PricePoint{Time: time.Unix(ts, 0).UTC(), Close: *closes[i]})
		}
	}

	if series.Len() == 0 {
		return models.PriceSeries{}, errors.DataUnavailable(fmt.Sprintf("no closing prices for %s", symbol))
	}
	return series, nil
}
