package interp

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInterpolate_BoundaryExactness(t *testing.T) {
	anchors := []model.Anchor{
		{Date: day(2024, 1, 1), Price: 100},
		{Date: day(2024, 3, 1), Price: 130},
	}

	pts := Interpolate(anchors, []time.Time{day(2024, 1, 1), day(2024, 3, 1)})
	if len(pts) != 2 {
		t.Fatalf("want 2 points, got %d", len(pts))
	}
	if pts[0].Price != 100 {
		t.Errorf("price at first anchor = %v, want exactly 100", pts[0].Price)
	}
	if pts[1].Price != 130 {
		t.Errorf("price at second anchor = %v, want exactly 130", pts[1].Price)
	}
}

func TestInterpolate_Midpoint(t *testing.T) {
	anchors := []model.Anchor{
		{Date: day(2024, 1, 1), Price: 100},
		{Date: day(2024, 1, 11), Price: 200},
	}

	pts := Interpolate(anchors, []time.Time{day(2024, 1, 6)})
	if math.Abs(pts[0].Price-150) > 1e-9 {
		t.Errorf("midpoint price = %v, want 150", pts[0].Price)
	}
}

func TestInterpolate_LinearBetweenTransactions(t *testing.T) {
	// Known points (2024-01-01, 100) and (2024-03-01, 130): 2024-02-01 is
	// 31 of 60 days along, so 100 + 30*31/60.
	anchors := []model.Anchor{
		{Date: day(2024, 1, 1), Price: 100},
		{Date: day(2024, 3, 1), Price: 130},
	}

	pts := Interpolate(anchors, []time.Time{day(2024, 2, 1)})
	if math.Abs(pts[0].Price-115.5) > 1e-9 {
		t.Errorf("interpolated price = %v, want 115.5", pts[0].Price)
	}
}

func TestInterpolate_SinglePointFlatLine(t *testing.T) {
	anchors := []model.Anchor{{Date: day(2024, 2, 15), Price: 42.5}}
	dates := model.DaysBetween(day(2024, 1, 1), day(2024, 1, 10))

	pts := Interpolate(anchors, dates)
	if len(pts) != 10 {
		t.Fatalf("want 10 points, got %d", len(pts))
	}
	for _, p := range pts {
		if p.Price != 42.5 {
			t.Fatalf("flat line violated at %s: got %v", p.Date.Format(model.DateLayout), p.Price)
		}
	}
}

func TestInterpolate_ExtrapolationUsesNearestTwoPoints(t *testing.T) {
	// Slope between the last two anchors is +1/day; the middle anchor
	// must not influence extrapolation.
	anchors := []model.Anchor{
		{Date: day(2024, 1, 1), Price: 50},
		{Date: day(2024, 1, 11), Price: 100},
		{Date: day(2024, 1, 21), Price: 110},
	}

	after := Interpolate(anchors, []time.Time{day(2024, 1, 31)})
	if math.Abs(after[0].Price-120) > 1e-9 {
		t.Errorf("forward extrapolation = %v, want 120", after[0].Price)
	}

	before := Interpolate(anchors, []time.Time{day(2023, 12, 22)})
	if math.Abs(before[0].Price-0) > 1e-9 {
		t.Errorf("backward extrapolation = %v, want 0", before[0].Price)
	}
}

func TestDriver_NoAnchorsIsUnsupported(t *testing.T) {
	d := NewDriver(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	_, err := d.FetchDates(context.Background(), drivers.Request{
		CanonicalKey: "ZZZZ",
		Start:        day(2024, 1, 1),
		End:          day(2024, 1, 5),
	})
	if !errors.Is(err, drivers.ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
