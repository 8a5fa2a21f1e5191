package marketdata

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/errors"
)

type csvRow struct {
	Date   string  `csv:"date"`
	Close  float64 `csv:"close"`
	Symbol string  `csv:"symbol"`
}

var csvDateLayouts = []string{DateLayout, time.RFC3339, "2006-01-02 15:04:05"}

func parseCSVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.InvalidArgumentf("unrecognised date %q", s)
}

// LoadCSV reads a price history file. See ReadCSV.
func LoadCSV(path string, symbol string) (models.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.PriceSeries{}, errors.WithType(errors.Wrapf(err, "open %s", path), errors.ErrorTypeNotFound)
	}
	defer f.Close()

	return ReadCSV(f, symbol)
}

// ReadCSV decodes date,close[,symbol] rows. A non-empty symbol keeps only rows
// whose symbol column matches it. Points are sorted by date.
func ReadCSV(r io.Reader, symbol string) (models.PriceSeries, error) {
	var rows []*csvRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return models.PriceSeries{}, errors.WithType(errors.Wrap(err, "decode price csv"), errors.ErrorTypeInvalidArgument)
	}

	series := models.PriceSeries{Symbol: symbol}
	for i, row := range rows {
		if symbol != "" && !strings.EqualFold(strings.TrimSpace(row.Symbol), symbol) {
			continue
		}
		t, err := parseCSVDate(row.Date)
		if err != nil {
			return models.PriceSeries{}, errors.Wrapf(err, "row %d", i+1)
		}
		if math.IsNaN(row.Close) || math.IsInf(row.Close, 0) {
			return models.PriceSeries{}, errors.InvalidArgument(fmt.Sprintf("row %d: close is not finite", i+1))
		}
		if series.Symbol == "" {
			series.Symbol = strings.TrimSpace(row.Symbol)
		}
		series.Points = append(series.Points, models.PricePoint{Time: t, Close: row.Close})
	}

	if series.Len() == 0 {
		if symbol != "" {
			return models.PriceSeries{}, errors.DataUnavailable(fmt.Sprintf("no rows for symbol %s", symbol))
		}
		return models.PriceSeries{}, errors.DataUnavailable("price csv has no rows")
	}

	sort.SliceStable(series.Points, func(i, j int) bool {
		return series.Points[i].Time.Before(series.Points[j].Time)
	})
	return series, nil
}

// CSVProvider serves price histories from a single CSV file
type CSVProvider struct {
	Path string
}

// Fetch implements Provider. The interval is validated but the file's own
// sampling is returned.
func (p CSVProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, interval string) (models.PriceSeries, error) {
	symbol, _, err := normalizeRequest(symbol, start, end, interval)
	if err != nil {
		return models.PriceSeries{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.PriceSeries{}, err
	}

	all, err := LoadCSV(p.Path, symbol)
	if err != nil {
		return models.PriceSeries{}, err
	}

	out := models.PriceSeries{Symbol: all.Symbol}
	for _, pt := range all.Points {
		if !pt.Time.Before(start) && pt.Time.Before(end) {
			out.Points = append(out.Points, pt)
		}
	}
	if out.Len() == 0 {
		return models.PriceSeries{}, errors.DataUnavailable(fmt.Sprintf("no rows for %s between %s and %s",
			symbol, start.Format(DateLayout), end.Format(DateLayout)))
	}
	return out, nil
}
