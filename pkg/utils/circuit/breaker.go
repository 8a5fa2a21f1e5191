package circuit

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	"github.com/sony/gobreaker"
)

// State mirrors the gobreaker state so callers don't import it directly
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

var (
	ErrCircuitBreakerOpen = errors.WithType(stderrors.New("circuit breaker is open"), errors.ErrorTypeResourceExhausted)
	ErrTooManyRequests    = errors.WithType(stderrors.New("too many requests"), errors.ErrorTypeResourceExhausted)
)

type Config struct {
	MaxRequests   uint32                            // Requests allowed through while half-open
	Interval      time.Duration                     // Closed-state window after which counts reset, 0 never resets
	Timeout       time.Duration                     // Time spent open before probing
	FailureRatio  float64                           // Failure ratio that trips the breaker
	MinRequests   uint32                            // Requests needed before the ratio is considered
	IsSuccessful  func(error) bool                  // Decides whether an error counts as a failure
	OnStateChange func(name string, from, to State) // Callback for state changes
}

func DefaultConfig() Config {
	return Config{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

type CircuitBreaker struct {
	cb  *gobreaker.CircuitBreaker
	log *logger.Logger
}

func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	defaults := DefaultConfig()
	if config.FailureRatio <= 0 {
		config.FailureRatio = defaults.FailureRatio
	}
	if config.MinRequests == 0 {
		config.MinRequests = defaults.MinRequests
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	log := logger.GetLogger(fmt.Sprintf("circuit.%s", name))

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed", "from", fromGobreaker(from).String(), "to", fromGobreaker(to).String())
			if config.OnStateChange != nil {
				config.OnStateChange(name, fromGobreaker(from), fromGobreaker(to))
			}
		},
		IsSuccessful: config.IsSuccessful,
	}

	log.Infof("Circuit breaker '%s' initialized in CLOSED state", name)
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings), log: log}
}

func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	res, err := cb.cb.Execute(fn)
	switch {
	case stderrors.Is(err, gobreaker.ErrOpenState):
		return nil, ErrCircuitBreakerOpen
	case stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrTooManyRequests
	}
	return res, err
}

func (cb *CircuitBreaker) ExecuteWithContext(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
}

// Do runs fn through the breaker and keeps its result type
func Do[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	res, err := cb.ExecuteWithContext(ctx, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

func (cb *CircuitBreaker) State() State {
	return fromGobreaker(cb.cb.State())
}

func (cb *CircuitBreaker) Name() string {
	return cb.cb.Name()
}
