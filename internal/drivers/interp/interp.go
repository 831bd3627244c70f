// Package interp is the terminal fallback tier: straight-line prices
// derived from known transaction fills. Always available, lowest trust.
package interp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/model"
)

type Driver struct {
	logger *slog.Logger
}

func NewDriver(logger *slog.Logger) *Driver {
	return &Driver{logger: logger.With("driver", "interp")}
}

func (d *Driver) Name() string     { return "interp" }
func (d *Driver) Tier() model.Tier { return model.TierInterpolated }

func (d *Driver) FetchDates(ctx context.Context, req drivers.Request) ([]model.PricePoint, error) {
	if len(req.Anchors) == 0 {
		return nil, fmt.Errorf("no transaction anchors for %s: %w", req.CanonicalKey, drivers.ErrUnsupported)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dates := model.DaysBetween(req.Start, req.End)
	points := Interpolate(req.Anchors, dates)
	d.logger.Warn("falling back to interpolated prices",
		"symbol", req.CanonicalKey, "anchors", len(req.Anchors), "points", len(points))
	return points, nil
}

// Interpolate produces a price for every target date from the known
// anchors. One anchor yields a flat line. With two or more, prices are
// linear between consecutive date-sorted anchors, and linear beyond the
// known range using the two nearest anchors. Anchors reproduce their own
// price exactly on their own date.
func Interpolate(anchors []model.Anchor, dates []time.Time) []model.PricePoint {
	if len(anchors) == 0 || len(dates) == 0 {
		return nil
	}

	known := make([]model.Anchor, len(anchors))
	copy(known, anchors)
	sort.Slice(known, func(i, j int) bool { return known[i].Date.Before(known[j].Date) })

	points := make([]model.PricePoint, 0, len(dates))
	for _, d := range dates {
		points = append(points, model.PricePoint{Date: model.Day(d), Price: priceAt(known, model.Day(d))})
	}
	return points
}

func priceAt(known []model.Anchor, d time.Time) float64 {
	if len(known) == 1 {
		return known[0].Price
	}

	first, last := known[0], known[len(known)-1]
	switch {
	case !d.After(first.Date):
		if d.Equal(first.Date) {
			return first.Price
		}
		return lerp(known[0], known[1], d)
	case !d.Before(last.Date):
		if d.Equal(last.Date) {
			return last.Price
		}
		return lerp(known[len(known)-2], known[len(known)-1], d)
	}

	// Interior date: find the bracketing anchor pair.
	idx := sort.Search(len(known), func(i int) bool { return !known[i].Date.Before(d) })
	if known[idx].Date.Equal(d) {
		return known[idx].Price
	}
	return lerp(known[idx-1], known[idx], d)
}

// lerp evaluates the line through a and b at date d, in day units.
func lerp(a, b model.Anchor, d time.Time) float64 {
	span := b.Date.Sub(a.Date).Hours() / 24
	if span == 0 {
		return a.Price
	}
	t := d.Sub(a.Date).Hours() / 24
	return a.Price + (b.Price-a.Price)*t/span
}
