package twelvedata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/resolver"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDriver(t *testing.T, handler http.HandlerFunc) *Driver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewDriver("test-key", resolver.NewTickerMap(), discard()).WithBaseURL(srv.URL)
}

func TestFetchDates_ParsesSeries(t *testing.T) {
	d := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "SPY" {
			t.Errorf("symbol = %q, want SPY", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1day" {
			t.Errorf("interval = %q, want 1day", got)
		}
		w.Write([]byte(`{"values":[
			{"datetime":"2024-01-02","close":"472.65"},
			{"datetime":"2024-01-03","close":"468.79"},
			{"datetime":"2023-12-29","close":"475.31"}
		],"status":"ok"}`))
	})

	pts, err := d.FetchDates(context.Background(), drivers.Request{
		CanonicalKey: "SPY",
		Start:        day(2024, 1, 1),
		End:          day(2024, 1, 5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("want 2 in-range points, got %d", len(pts))
	}
	if pts[0].Price != 472.65 {
		t.Errorf("first close = %v, want 472.65", pts[0].Price)
	}
}

func TestFetchDates_JapaneseTickerUnsupported(t *testing.T) {
	d := NewDriver("test-key", resolver.NewTickerMap(), discard())

	_, err := d.FetchDates(context.Background(), drivers.Request{
		CanonicalKey: "4755",
		Start:        day(2024, 1, 1),
		End:          day(2024, 1, 5),
	})
	if !errors.Is(err, drivers.ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
}

func TestFetchDates_MissingAPIKeyUnsupported(t *testing.T) {
	d := NewDriver("", resolver.NewTickerMap(), discard())

	_, err := d.FetchDates(context.Background(), drivers.Request{
		CanonicalKey: "SPY",
		Start:        day(2024, 1, 1),
		End:          day(2024, 1, 5),
	})
	if !errors.Is(err, drivers.ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
}

func TestFetchSeries_ErrorClassification(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			"http 429 is transient",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			drivers.ErrTransient,
		},
		{
			"http 500 is transient",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			drivers.ErrTransient,
		},
		{
			"api-level rate limit is transient",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"error","code":429,"message":"credits exhausted"}`))
			},
			drivers.ErrTransient,
		},
		{
			"unknown symbol is definitive",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"error","code":400,"message":"symbol not found"}`))
			},
			drivers.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestDriver(t, tc.handler)
			_, err := d.FetchSeries(context.Background(), "SPY", day(2024, 1, 1), day(2024, 1, 5))
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFetchSeries_EmptyValuesIsEmptyResult(t *testing.T) {
	d := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values":[],"status":"ok"}`))
	})

	pts, err := d.FetchSeries(context.Background(), "SPY", day(2024, 1, 1), day(2024, 1, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 0 {
		t.Fatalf("want empty result, got %d points", len(pts))
	}
}
