package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rzzdr/options-engine/pkg/metrics"
	"github.com/rzzdr/options-engine/pkg/utils/circuit"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"AAPL"},
"timestamp":[1577923200,1578009600,1578268800],
"indicators":{"quote":[{"close":[75.09,null,74.36]}]}}],"error":null}}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *YahooProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewYahooProvider(YahooConfig{
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		RateLimit: 1000,
		RateBurst: 10,
		Breaker:   circuit.Config{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Hour},
	}, metrics.NewRecorder(nil))
}

func window() (time.Time, time.Time) {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 1, 7, 0, 0, 0, 0, time.UTC)
}

func TestYahooFetch(t *testing.T) {
	var gotPath, gotInterval string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartBody))
	})

	start, end := window()
	series, err := p.Fetch(context.Background(), "AAPL", start, end, "")
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "1d", gotInterval)
	assert.Equal(t, "AAPL", series.Symbol)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, []float64{75.09, 74.36}, series.Closes())
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), series.Points[0].Time)
}

func TestYahooFetchNoData(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})

	start, end := window()
	_, err := p.Fetch(context.Background(), "NOPE", start, end, "1d")
	assert.True(t, errors.IsType(err, errors.ErrorTypeDataUnavailable), "got %v", err)
}

func TestYahooFetchEmptyCloses(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"symbol":"X"},"timestamp":[1577923200],"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`))
	})

	start, end := window()
	_, err := p.Fetch(context.Background(), "X", start, end, "1d")
	assert.True(t, errors.IsType(err, errors.ErrorTypeDataUnavailable))
}

func TestYahooFetchValidatesRequest(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })
	start, end := window()

	_, err := p.Fetch(context.Background(), "", start, end, "1d")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))

	_, err = p.Fetch(context.Background(), "AAPL", end, start, "1d")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))

	_, err = p.Fetch(context.Background(), "AAPL", start, end, "7d")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))

	assert.Zero(t, hits.Load())
}

func TestYahooBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	start, end := window()

	for i := 0; i < 2; i++ {
		_, err := p.Fetch(context.Background(), "AAPL", start, end, "1d")
		assert.True(t, errors.IsType(err, errors.ErrorTypeNetwork), "got %v", err)
	}

	_, err := p.Fetch(context.Background(), "AAPL", start, end, "1d")
	assert.ErrorIs(t, err, circuit.ErrCircuitBreakerOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestYahooNotFoundDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	start, end := window()

	for i := 0; i < 4; i++ {
		_, err := p.Fetch(context.Background(), "GONE", start, end, "1d")
		assert.True(t, errors.IsType(err, errors.ErrorTypeDataUnavailable))
	}
	assert.Equal(t, int32(4), hits.Load())
}
