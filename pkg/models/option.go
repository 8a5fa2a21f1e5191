package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
)

// OptionType is the exercise right of a European option. The zero value is invalid.
type OptionType uint8

const (
	OptionTypeCall OptionType = iota + 1
	OptionTypePut
)

// ParseOptionType accepts "call" or "put" in any case
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return OptionTypeCall, nil
	case "put":
		return OptionTypePut, nil
	default:
		return 0, errors.InvalidContract(fmt.Sprintf("unknown option type %q", s))
	}
}

// Valid reports whether t is one of the two defined option types
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// Sign is +1 for calls and -1 for puts
func (t OptionType) Sign() float64 {
	if t == OptionTypePut {
		return -1
	}
	return 1
}

// Opposite returns put for call and call for put
func (t OptionType) Opposite() OptionType {
	if t == OptionTypeCall {
		return OptionTypePut
	}
	return OptionTypeCall
}

func (t OptionType) String() string {
	switch t {
	case OptionTypeCall:
		return "call"
	case OptionTypePut:
		return "put"
	default:
		return fmt.Sprintf("OptionType(%d)", uint8(t))
	}
}

// MarshalText implements encoding.TextMarshaler
func (t OptionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.InvalidContract(fmt.Sprintf("invalid option type %d", uint8(t)))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *OptionType) UnmarshalText(text []byte) error {
	parsed, err := ParseOptionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Contract describes a single European option. It is passed by value and never mutated.
type Contract struct {
	UnderlyingPrice float64    `json:"underlying_price"`
	Strike          float64    `json:"strike"`
	TimeToExpiry    float64    `json:"time_to_expiry"` // years
	RiskFreeRate    float64    `json:"risk_free_rate"` // continuously compounded
	Volatility      float64    `json:"volatility"`
	OptionType      OptionType `json:"option_type"`
}

// NewContract creates a new contract and validates it
func NewContract(underlying, strike, expiry, rate, vol float64, optType OptionType) (Contract, error) {
	c := Contract{
		UnderlyingPrice: underlying,
		Strike:          strike,
		TimeToExpiry:    expiry,
		RiskFreeRate:    rate,
		Volatility:      vol,
		OptionType:      optType,
	}
	if err := c.Validate(); err != nil {
		return Contract{}, err
	}
	return c, nil
}

// Validate returns an InvalidContract error if any pricing precondition is violated
func (c Contract) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"underlying price", c.UnderlyingPrice},
		{"strike", c.Strike},
		{"time to expiry", c.TimeToExpiry},
		{"risk-free rate", c.RiskFreeRate},
		{"volatility", c.Volatility},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return errors.InvalidContract(fmt.Sprintf("%s must be finite, got %v", f.name, f.value))
		}
	}

	switch {
	case c.UnderlyingPrice <= 0:
		return errors.InvalidContract(fmt.Sprintf("underlying price must be positive, got %v", c.UnderlyingPrice))
	case c.Strike <= 0:
		return errors.InvalidContract(fmt.Sprintf("strike must be positive, got %v", c.Strike))
	case c.TimeToExpiry <= 0:
		return errors.InvalidContract(fmt.Sprintf("time to expiry must be positive, got %v", c.TimeToExpiry))
	case c.Volatility <= 0:
		return errors.InvalidContract(fmt.Sprintf("volatility must be positive, got %v", c.Volatility))
	case !c.OptionType.Valid():
		return errors.InvalidContract(fmt.Sprintf("invalid option type %d", uint8(c.OptionType)))
	}
	return nil
}

// WithOptionType returns a copy of c with the option type replaced
func (c Contract) WithOptionType(t OptionType) Contract {
	c.OptionType = t
	return c
}

// Sign is the payoff sign of the contract's option type
func (c Contract) Sign() float64 {
	return c.OptionType.Sign()
}

// Payoff is the exercise value at the given terminal underlying price
func (c Contract) Payoff(spot float64) float64 {
	return math.Max(c.Sign()*(spot-c.Strike), 0)
}
