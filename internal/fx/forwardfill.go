// Package fx builds daily exchange-rate maps from sparse FX series.
// FX pairs are ordinary assets: they flow through the same resolution,
// caching and tier pipeline as everything else.
package fx

import (
	"context"
	"fmt"
	"time"

	"github.com/ymorita/priceradar/internal/model"
)

// SeriesSource is the slice of the fetch coordinator the builder needs.
// The empty target currency stops the coordinator from recursing into
// another conversion while fetching the pair itself.
type SeriesSource interface {
	GetPriceHistory(ctx context.Context, symbol, name string, start, end time.Time, targetCurrency string) (model.PriceSeries, error)
}

// BuildForwardFilledMap fetches the pair's sparse daily series and
// forward-fills it over every calendar date in [start, end]. Weekends and
// market holidays inherit the last published rate. Dates before the first
// observation stay absent: a price on such a date cannot be converted and
// must be omitted rather than guessed.
func BuildForwardFilledMap(ctx context.Context, src SeriesSource, pair string, start, end time.Time) (map[string]float64, error) {
	series, err := src.GetPriceHistory(ctx, pair, "", start, end, "")
	if err != nil {
		return nil, fmt.Errorf("fetch fx pair %s: %w", pair, err)
	}

	observed := make(map[string]float64, len(series.Points))
	for _, p := range series.Points {
		observed[model.DateKey(p.Date)] = p.Price
	}

	rates := make(map[string]float64, len(observed))
	var last float64
	haveLast := false
	for _, d := range model.DaysBetween(start, end) {
		key := model.DateKey(d)
		if rate, ok := observed[key]; ok {
			last, haveLast = rate, true
		}
		if haveLast {
			rates[key] = last
		}
	}
	return rates, nil
}
