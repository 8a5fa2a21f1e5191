// Package marketdata supplies closing price histories from Yahoo Finance or
// from CSV files.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
)

// Provider fetches closing prices for symbol between start and end
type Provider interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time, interval string) (models.PriceSeries, error)
}

// DefaultInterval is the bar size used when the caller passes none
const DefaultInterval = "1d"

var validIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true,
	"1h": true, "1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
}

// DateLayout is the day format accepted for range boundaries
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD boundary in UTC
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.InvalidArgumentf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func normalizeRequest(symbol string, start, end time.Time, interval string) (string, string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", "", errors.InvalidArgument("symbol is required")
	}
	if !end.After(start) {
		return "", "", errors.InvalidArgument(fmt.Sprintf("end %s must be after start %s",
			end.Format(DateLayout), start.Format(DateLayout)))
	}
	if interval == "" {
		interval = DefaultInterval
	}
	if !validIntervals[interval] {
		return "", "", errors.InvalidArgument(fmt.Sprintf("unsupported interval %q", interval))
	}
	return symbol, interval, nil
}
