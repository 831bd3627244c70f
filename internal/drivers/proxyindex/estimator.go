// Package proxyindex approximates an opaque fund's price from a liquid
// benchmark's return, anchored to one known transaction fill. The result
// carries a declared low-trust tier; it never silently substitutes a
// different asset.
package proxyindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/model"
)

// Proxy binds an asset to the benchmark instrument that tracks it, with a
// multiplier to de-lever or de-scale tracking products.
type Proxy struct {
	Ticker     string
	Multiplier float64
}

// defaultProxies maps canonical keys to their benchmark proxies.
var defaultProxies = map[string]Proxy{
	"03311187": {Ticker: "SPY", Multiplier: 1.0},  // S&P500 index fund
	"0331418A": {Ticker: "ACWI", Multiplier: 1.0}, // all-country index fund
	"04311181": {Ticker: "QQQ", Multiplier: 1.0},  // FANG+ fund, nearest liquid proxy
	"29314233": {Ticker: "SOXX", Multiplier: 1.0}, // SOX index fund
	"25314203": {Ticker: "IYR", Multiplier: 1.0},  // US REIT fund
}

// QuoteFunc fetches the proxy instrument's own series. The coordinator
// wires it to the rate-limited provider-API driver.
type QuoteFunc func(ctx context.Context, ticker string, start, end time.Time) ([]model.PricePoint, error)

type Estimator struct {
	proxies map[string]Proxy
	quotes  QuoteFunc
	logger  *slog.Logger
}

func NewEstimator(quotes QuoteFunc, logger *slog.Logger) *Estimator {
	return &Estimator{
		proxies: defaultProxies,
		quotes:  quotes,
		logger:  logger.With("driver", "proxyindex"),
	}
}

func (e *Estimator) Name() string     { return "proxyindex" }
func (e *Estimator) Tier() model.Tier { return model.TierProxyEstimated }

// FetchDates estimates prices as
// anchorPrice * proxyPrice(date)/proxyPrice(anchorDate) * multiplier.
// It needs a proxy mapping, at least one anchor, and proxy data covering
// the anchor date; otherwise it reports ErrUnsupported so the coordinator
// moves on.
func (e *Estimator) FetchDates(ctx context.Context, req drivers.Request) ([]model.PricePoint, error) {
	proxy, ok := e.proxies[req.CanonicalKey]
	if !ok {
		return nil, fmt.Errorf("no proxy mapping for %s: %w", req.CanonicalKey, drivers.ErrUnsupported)
	}
	if len(req.Anchors) == 0 {
		return nil, fmt.Errorf("no anchor price for %s: %w", req.CanonicalKey, drivers.ErrUnsupported)
	}

	anchor := latestAnchor(req.Anchors)

	// The proxy series must span the anchor date as well as the target range.
	start, end := req.Start, req.End
	if anchor.Date.Before(start) {
		start = anchor.Date
	}
	if anchor.Date.After(end) {
		end = anchor.Date
	}

	series, err := e.quotes(ctx, proxy.Ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("proxy %s unavailable: %w", proxy.Ticker, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("proxy %s returned no data: %w", proxy.Ticker, drivers.ErrUnsupported)
	}

	anchorProxy, ok := proxyPriceOnOrBefore(series, anchor.Date)
	if !ok {
		return nil, fmt.Errorf("proxy %s has no price at anchor date %s: %w",
			proxy.Ticker, model.DateKey(anchor.Date), drivers.ErrUnsupported)
	}

	points := make([]model.PricePoint, 0, len(series))
	for _, p := range series {
		if p.Date.Before(req.Start) || p.Date.After(req.End) {
			continue
		}
		points = append(points, model.PricePoint{
			Date:  p.Date,
			Price: anchor.Price * (p.Price / anchorProxy) * proxy.Multiplier,
		})
	}

	e.logger.Info("estimated prices via proxy index",
		"symbol", req.CanonicalKey, "proxy", proxy.Ticker, "points", len(points))
	return points, nil
}

func latestAnchor(anchors []model.Anchor) model.Anchor {
	latest := anchors[0]
	for _, a := range anchors[1:] {
		if a.Date.After(latest.Date) {
			latest = a
		}
	}
	return latest
}

// proxyPriceOnOrBefore returns the proxy price on the anchor date, or the
// closest earlier observation (the anchor may fall on a market holiday).
func proxyPriceOnOrBefore(series []model.PricePoint, d time.Time) (float64, bool) {
	var (
		best  float64
		bestT time.Time
		found bool
	)
	for _, p := range series {
		if p.Date.After(d) {
			continue
		}
		if !found || p.Date.After(bestT) {
			best, bestT, found = p.Price, p.Date, true
		}
	}
	return best, found
}
