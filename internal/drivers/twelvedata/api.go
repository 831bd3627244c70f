// Package twelvedata fetches daily close series from the Twelve Data
// time_series endpoint. It is the provider-API tier: plain HTTP, no
// browser, throttled from outside by the ratelimit decorator.
package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/model"
	"github.com/ymorita/priceradar/internal/resolver"
)

const (
	defaultBaseURL = "https://api.twelvedata.com"
	requestTimeout = 15 * time.Second
)

type Driver struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	tickers    *resolver.TickerMap
	logger     *slog.Logger
}

func NewDriver(apiKey string, tickers *resolver.TickerMap, logger *slog.Logger) *Driver {
	return &Driver{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		tickers:    tickers,
		logger:     logger.With("driver", "twelvedata"),
	}
}

// WithBaseURL points the client at a different endpoint (tests).
func (d *Driver) WithBaseURL(base string) *Driver {
	d.baseURL = base
	return d
}

func (d *Driver) Name() string     { return "twelvedata" }
func (d *Driver) Tier() model.Tier { return model.TierProviderAPI }

type timeSeriesResponse struct {
	Values []struct {
		Datetime string `json:"datetime"`
		Close    string `json:"close"`
	} `json:"values"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (d *Driver) FetchDates(ctx context.Context, req drivers.Request) ([]model.PricePoint, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("no API key configured: %w", drivers.ErrUnsupported)
	}
	ticker, err := d.tickers.ProviderTicker(req.CanonicalKey, resolver.ProviderTwelveData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.CanonicalKey, drivers.ErrUnsupported)
	}
	return d.FetchSeries(ctx, ticker, req.Start, req.End)
}

// FetchSeries fetches by provider ticker directly. The proxy estimator
// uses this path for benchmark instruments that have no canonical key.
func (d *Driver) FetchSeries(ctx context.Context, ticker string, start, end time.Time) ([]model.PricePoint, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("no API key configured: %w", drivers.ErrUnsupported)
	}

	q := url.Values{}
	q.Set("symbol", ticker)
	q.Set("interval", "1day")
	q.Set("start_date", model.DateKey(start))
	q.Set("end_date", model.DateKey(end))
	q.Set("order", "ASC")
	q.Set("dp", "6")
	q.Set("apikey", d.apiKey)

	u := d.baseURL + "/time_series?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("twelvedata request for %s failed: %w: %v", ticker, drivers.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("twelvedata returned HTTP %d for %s: %w", resp.StatusCode, ticker, drivers.ErrTransient)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twelvedata returned HTTP %d for %s: %w", resp.StatusCode, ticker, drivers.ErrNotFound)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read twelvedata response: %w: %v", drivers.ErrTransient, err)
	}

	var ts timeSeriesResponse
	if err := json.Unmarshal(body, &ts); err != nil {
		return nil, fmt.Errorf("decode twelvedata response for %s: %w", ticker, err)
	}
	if ts.Status == "error" {
		if ts.Code == http.StatusTooManyRequests {
			return nil, fmt.Errorf("twelvedata rate limited: %w", drivers.ErrTransient)
		}
		return nil, fmt.Errorf("twelvedata error %d (%s): %w", ts.Code, ts.Message, drivers.ErrNotFound)
	}

	startDay, endDay := model.Day(start), model.Day(end)
	points := make([]model.PricePoint, 0, len(ts.Values))
	for _, v := range ts.Values {
		day, err := model.ParseDate(v.Datetime)
		if err != nil {
			continue
		}
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		price, err := strconv.ParseFloat(v.Close, 64)
		if err != nil {
			continue
		}
		points = append(points, model.PricePoint{Date: day, Price: price})
	}

	d.logger.Info("fetched provider-API series", "ticker", ticker, "points", len(points))
	return points, nil
}
