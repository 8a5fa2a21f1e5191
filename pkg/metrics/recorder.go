package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder handles metrics recording and exposure. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	// Pricing metrics
	pricingCounter *prometheus.CounterVec
	pricingLatency *prometheus.HistogramVec

	// API metrics
	apiRequestCounter   *prometheus.CounterVec
	apiLatencyHistogram *prometheus.HistogramVec

	// Market data metrics
	marketDataFetchCounter *prometheus.CounterVec
	marketDataLatency      *prometheus.HistogramVec
	breakerStateGauge      *prometheus.GaugeVec

	// Risk metrics
	varGauge *prometheus.GaugeVec

	// Messaging metrics
	kafkaMessageCounter *prometheus.CounterVec
}

// NewRecorder creates a new metrics recorder registered on reg. A nil reg
// gets a fresh registry with the Go and process collectors.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		pricingCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "options_pricing_requests_total",
				Help: "The total number of pricing calls",
			},
			[]string{"method", "status"},
		),
		pricingLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "options_pricing_latency_seconds",
				Help:    "Pricing call latency distribution",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12), // From 10µs to ~40s
			},
			[]string{"method"},
		),

		apiRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "options_api_requests_total",
				Help: "The total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiLatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "options_api_latency_seconds",
				Help:    "API request latency distribution",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // From 1ms to ~16s
			},
			[]string{"method", "path"},
		),

		marketDataFetchCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "options_market_data_fetches_total",
				Help: "The total number of price history fetches",
			},
			[]string{"provider", "status"},
		),
		marketDataLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "options_market_data_latency_seconds",
				Help:    "Price history fetch latency",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		breakerStateGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "options_circuit_breaker_state",
				Help: "Circuit breaker state (0: closed, 1: half-open, 2: open)",
			},
			[]string{"name"},
		),

		varGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "options_var_value",
				Help: "Most recently computed Value at Risk",
			},
			[]string{"method", "confidence_level"},
		),

		kafkaMessageCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "options_kafka_messages_total",
				Help: "Kafka messages handled by topic and outcome",
			},
			[]string{"topic", "status"},
		),
	}
}

// Registry returns the registry the recorder's collectors live on
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the recorder's registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordPricing records one engine call
func (r *Recorder) RecordPricing(method string, err error, latency time.Duration) {
	if r == nil {
		return
	}
	r.pricingCounter.WithLabelValues(method, outcome(err)).Inc()
	r.pricingLatency.WithLabelValues(method).Observe(latency.Seconds())
}

// RecordAPIRequest records metrics for an API request
func (r *Recorder) RecordAPIRequest(method, path string, status int, latency time.Duration) {
	if r == nil {
		return
	}
	r.apiRequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.apiLatencyHistogram.WithLabelValues(method, path).Observe(latency.Seconds())
}

// RecordMarketDataFetch records a price history fetch
func (r *Recorder) RecordMarketDataFetch(provider string, err error, latency time.Duration) {
	if r == nil {
		return
	}
	r.marketDataFetchCounter.WithLabelValues(provider, outcome(err)).Inc()
	r.marketDataLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// RecordBreakerState records the current state of a circuit breaker
func (r *Recorder) RecordBreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.breakerStateGauge.WithLabelValues(name).Set(float64(state))
}

// RecordVaR records the current VaR value
func (r *Recorder) RecordVaR(method string, confidenceLevel float64, value float64) {
	if r == nil {
		return
	}
	r.varGauge.WithLabelValues(method, strconv.FormatFloat(confidenceLevel, 'f', -1, 64)).Set(value)
}

// RecordKafkaMessage records a consumed or produced message
func (r *Recorder) RecordKafkaMessage(topic string, err error) {
	if r == nil {
		return
	}
	r.kafkaMessageCounter.WithLabelValues(topic, outcome(err)).Inc()
}
