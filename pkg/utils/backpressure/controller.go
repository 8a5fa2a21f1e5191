// Package backpressure bounds how many expensive computations run at once.
package backpressure

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	"golang.org/x/sync/semaphore"
)

// Strategy decides what happens to work arriving while the limit is reached
type Strategy int

const (
	// Block waits for a slot until the context is done
	Block Strategy = iota
	// Reject fails immediately with ErrOverloaded
	Reject
)

func (s Strategy) String() string {
	if s == Reject {
		return "reject"
	}
	return "block"
}

// ParseStrategy maps a config name onto a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return Block, nil
	case "reject":
		return Reject, nil
	default:
		return 0, errors.InvalidArgument(fmt.Sprintf("unknown backpressure strategy %q", s))
	}
}

// ErrOverloaded is returned by Acquire under the Reject strategy
var ErrOverloaded = errors.ResourceExhausted("too many computations in flight")

type Config struct {
	Name          string
	MaxConcurrent int64
	Strategy      Strategy
	OnReject      func(name string)
}

// Controller is a counting semaphore with a configurable overload strategy.
// A nil Controller admits everything.
type Controller struct {
	name     string
	strategy Strategy
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	rejected atomic.Int64
	onReject func(string)
	log      *logger.Logger
}

// NewController returns nil when MaxConcurrent is not positive
func NewController(config Config) *Controller {
	if config.MaxConcurrent <= 0 {
		return nil
	}

	c := &Controller{
		name:     config.Name,
		strategy: config.Strategy,
		sem:      semaphore.NewWeighted(config.MaxConcurrent),
		onReject: config.OnReject,
		log:      logger.GetLogger("backpressure." + config.Name),
	}
	c.log.Infof("Backpressure controller '%s' admits %d at a time, strategy %v",
		config.Name, config.MaxConcurrent, config.Strategy)

	return c
}

// Acquire takes a slot. The returned release func must be called exactly once.
func (c *Controller) Acquire(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, nil
	}

	switch c.strategy {
	case Reject:
		if !c.sem.TryAcquire(1) {
			c.rejected.Add(1)
			if c.onReject != nil {
				c.onReject(c.name)
			}
			c.log.Debugw("computation rejected", "in_flight", c.inFlight.Load())
			return nil, ErrOverloaded
		}
	default:
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	c.inFlight.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			c.inFlight.Add(-1)
			c.sem.Release(1)
		}
	}, nil
}

// InFlight is the number of slots currently held
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// Rejected counts Acquire calls turned away under the Reject strategy
func (c *Controller) Rejected() int64 {
	if c == nil {
		return 0
	}
	return c.rejected.Load()
}
