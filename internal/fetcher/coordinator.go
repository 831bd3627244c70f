// Package fetcher orchestrates price resolution: cache first, then a
// fixed ladder of source tiers, each guarded by a circuit breaker and
// de-duplicated across concurrent callers.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/fx"
	"github.com/ymorita/priceradar/internal/model"
	"github.com/ymorita/priceradar/internal/repository"
	"github.com/ymorita/priceradar/internal/resolver"
	"github.com/ymorita/priceradar/pkg/faulttolerance"
)

const defaultTierTimeout = 90 * time.Second

// errEmptyResult marks a source that answered successfully but produced
// nothing for the range. It feeds the breaker like any other failure.
var errEmptyResult = errors.New("fetcher: source returned no data for range")

// Params wires a Coordinator. Tiers must be ordered strongest first;
// the zero value of everything else gets a sane default.
type Params struct {
	Resolver    *resolver.Resolver
	Tickers     *resolver.TickerMap
	Cache       repository.PriceRepository
	Anchors     AnchorSource
	Tiers       []drivers.Driver
	Breakers    *faulttolerance.BreakerRegistry
	TierTimeout time.Duration
	Logger      *slog.Logger
}

// Coordinator is the engine's sole public operation surface. It is safe
// for concurrent use; per-(asset, tier, range) fetches are coalesced so
// a burst of identical requests produces one upstream call.
type Coordinator struct {
	resolver    *resolver.Resolver
	tickers     *resolver.TickerMap
	cache       repository.PriceRepository
	anchors     AnchorSource
	tiers       []drivers.Driver
	breakers    *faulttolerance.BreakerRegistry
	flight      singleflight.Group
	tierTimeout time.Duration
	logger      *slog.Logger
}

func NewCoordinator(p Params) *Coordinator {
	if p.Resolver == nil {
		p.Resolver = resolver.NewResolver()
	}
	if p.Tickers == nil {
		p.Tickers = resolver.NewTickerMap()
	}
	if p.Breakers == nil {
		p.Breakers = faulttolerance.NewBreakerRegistry(faulttolerance.CircuitBreakerConfig{}, nil)
	}
	if p.TierTimeout <= 0 {
		p.TierTimeout = defaultTierTimeout
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Coordinator{
		resolver:    p.Resolver,
		tickers:     p.Tickers,
		cache:       p.Cache,
		anchors:     p.Anchors,
		tiers:       p.Tiers,
		breakers:    p.Breakers,
		tierTimeout: p.TierTimeout,
		logger:      p.Logger,
	}
}

// GetPriceHistory resolves the identifier, serves what the cache covers,
// and walks the tier ladder for the rest. Dates no source can price are
// omitted, never zero-filled. The returned series is labeled with the
// weakest tier that contributed any point. Only an unresolvable
// identifier is a hard failure; every source problem degrades to a
// shorter series.
func (c *Coordinator) GetPriceHistory(ctx context.Context, symbol, name string, start, end time.Time, targetCurrency string) (model.PriceSeries, error) {
	key, err := c.resolver.Resolve(symbol, name)
	if err != nil {
		return model.PriceSeries{}, err
	}
	start, end = model.Day(start), model.Day(end)
	if end.Before(start) {
		return model.PriceSeries{}, fmt.Errorf("fetcher: range end %s precedes start %s", model.DateKey(end), model.DateKey(start))
	}

	collected := make(map[string]model.PricePoint)
	tierByDate := make(map[string]model.Tier)
	missing := make(map[string]time.Time)
	for _, d := range model.DaysBetween(start, end) {
		missing[model.DateKey(d)] = d
	}

	if covered := c.loadCache(ctx, key, start, end, collected, tierByDate, missing); covered {
		c.logger.Debug("price range served from cache", "symbol", key,
			"start", model.DateKey(start), "end", model.DateKey(end))
		return c.assemble(ctx, key, start, end, targetCurrency, collected, tierByDate)
	}

	var anchors []model.Anchor
	anchorsLoaded := false

	for _, drv := range c.tiers {
		if len(missing) == 0 {
			break
		}
		tier := drv.Tier()
		if tierNeedsAnchors(tier) && !anchorsLoaded {
			anchors = c.loadAnchors(ctx, key)
			anchorsLoaded = true
		}

		breaker := c.breakers.Get(key + "|" + tier.String())
		if !breaker.Allow() {
			c.logger.Debug("source circuit open, skipping", "symbol", key, "tier", tier)
			continue
		}

		spanStart, spanEnd := missingSpan(missing)
		req := drivers.Request{
			CanonicalKey: key,
			Name:         name,
			Start:        spanStart,
			End:          spanEnd,
			Anchors:      anchors,
		}

		points, err := c.sharedFetch(ctx, drv, req)
		switch {
		case errors.Is(err, drivers.ErrUnsupported) || errors.Is(err, resolver.ErrNotSupported):
			// Deterministic skip for this asset, not a source failure.
		case err != nil:
			if ctx.Err() != nil {
				return model.PriceSeries{}, ctx.Err()
			}
			breaker.Record(err)
			c.logger.Warn("source failed", "symbol", key, "tier", tier, "error", err)
		case len(points) == 0:
			breaker.Record(errEmptyResult)
			c.logger.Debug("source returned nothing", "symbol", key, "tier", tier)
		default:
			breaker.Record(nil)
			c.absorb(ctx, key, tier, points, collected, tierByDate, missing)
		}
	}

	if len(missing) > 0 {
		c.logger.Debug("dates left unpriced", "symbol", key, "count", len(missing))
	}
	return c.assemble(ctx, key, start, end, targetCurrency, collected, tierByDate)
}

// sharedFetch coalesces identical in-flight fetches. The shared call runs
// detached from the triggering caller with its own tier timeout, so a
// canceled waiter abandons the wait without aborting work other callers
// still depend on.
func (c *Coordinator) sharedFetch(ctx context.Context, drv drivers.Driver, req drivers.Request) ([]model.PricePoint, error) {
	sfKey := req.CanonicalKey + "|" + drv.Tier().String() + "|" +
		model.DateKey(req.Start) + "|" + model.DateKey(req.End)

	ch := c.flight.DoChan(sfKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.tierTimeout)
		defer cancel()
		return drv.FetchDates(fctx, req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		points, _ := res.Val.([]model.PricePoint)
		return points, nil
	}
}

// loadCache fills collected from cached rows and reports whether the
// cached span reaches both range boundaries. A cache error degrades to
// an all-miss: the engine must keep answering without its cache.
func (c *Coordinator) loadCache(ctx context.Context, key string, start, end time.Time, collected map[string]model.PricePoint, tierByDate map[string]model.Tier, missing map[string]time.Time) bool {
	if c.cache == nil {
		return false
	}
	rows, err := c.cache.Get(ctx, key, model.DateKey(start), model.DateKey(end))
	if err != nil {
		c.logger.Warn("price cache unavailable, treating range as uncached", "symbol", key, "error", err)
		return false
	}
	for _, row := range rows {
		collected[row.Date] = model.PricePoint{Date: row.Day(), Price: row.Price, Currency: row.Currency}
		tierByDate[row.Date] = row.Source
		delete(missing, row.Date)
	}
	if len(rows) == 0 {
		return false
	}
	return rows[0].Date <= model.DateKey(start) && rows[len(rows)-1].Date >= model.DateKey(end)
}

// absorb merges a tier's points, writes them through to the cache, and
// settles the missing set. Calendar dates inside the returned span that
// carry no point are non-trading days: they are dropped from the output
// and never handed to weaker tiers.
func (c *Coordinator) absorb(ctx context.Context, key string, tier model.Tier, points []model.PricePoint, collected map[string]model.PricePoint, tierByDate map[string]model.Tier, missing map[string]time.Time) {
	native := c.tickers.NativeCurrency(key)
	now := time.Now().UTC()
	entries := make([]model.PriceHistory, 0, len(points))

	var spanStart, spanEnd time.Time
	for i, p := range points {
		day := model.Day(p.Date)
		if i == 0 || day.Before(spanStart) {
			spanStart = day
		}
		if i == 0 || day.After(spanEnd) {
			spanEnd = day
		}
		currency := p.Currency
		if currency == "" {
			currency = native
		}
		dk := model.DateKey(day)
		entries = append(entries, model.PriceHistory{
			Symbol:    key,
			Date:      dk,
			Price:     p.Price,
			Currency:  currency,
			Source:    tier,
			FetchedAt: now,
		})
		if _, wanted := missing[dk]; wanted {
			collected[dk] = model.PricePoint{Date: day, Price: p.Price, Currency: currency}
			tierByDate[dk] = tier
			delete(missing, dk)
		}
	}

	for dk, day := range missing {
		if !day.Before(spanStart) && !day.After(spanEnd) {
			delete(missing, dk)
		}
	}

	if c.cache == nil {
		return
	}
	if err := c.cache.Put(ctx, entries); err != nil {
		c.logger.Warn("price cache write failed", "symbol", key, "error", err)
	}
}

// assemble orders the points, converts currency when asked, and labels
// the series with the weakest contributing tier.
func (c *Coordinator) assemble(ctx context.Context, key string, start, end time.Time, targetCurrency string, collected map[string]model.PricePoint, tierByDate map[string]model.Tier) (model.PriceSeries, error) {
	dates := make([]string, 0, len(collected))
	for dk := range collected {
		dates = append(dates, dk)
	}
	sort.Strings(dates)

	points := make([]model.PricePoint, 0, len(dates))
	tiers := make([]model.Tier, 0, len(dates))
	for _, dk := range dates {
		points = append(points, collected[dk])
		tiers = append(tiers, tierByDate[dk])
	}

	if targetCurrency != "" {
		points = c.convert(ctx, points, targetCurrency, start, end)
	}

	return model.PriceSeries{
		Symbol: key,
		Points: points,
		Source: model.WeakestTier(tiers),
	}, nil
}

// convert rewrites points into the target currency using forward-filled
// daily rate maps, one per source currency. A point dated before the
// pair's first observation, or a pair that cannot be fetched at all,
// drops the point rather than inventing a rate.
func (c *Coordinator) convert(ctx context.Context, points []model.PricePoint, target string, start, end time.Time) []model.PricePoint {
	rateMaps := make(map[string]map[string]float64)
	out := make([]model.PricePoint, 0, len(points))

	for _, p := range points {
		currency := p.Currency
		if currency == "" || currency == target {
			out = append(out, p)
			continue
		}
		rates, ok := rateMaps[currency]
		if !ok {
			pair := currency + target + "=X"
			m, err := fx.BuildForwardFilledMap(ctx, c, pair, start, end)
			if err != nil {
				c.logger.Warn("exchange-rate map unavailable, omitting converted prices",
					"pair", pair, "error", err)
				m = map[string]float64{}
			}
			rateMaps[currency] = m
			rates = m
		}
		rate, ok := rates[model.DateKey(p.Date)]
		if !ok {
			continue
		}
		out = append(out, model.PricePoint{Date: p.Date, Price: p.Price * rate, Currency: target})
	}
	return out
}

func (c *Coordinator) loadAnchors(ctx context.Context, key string) []model.Anchor {
	if c.anchors == nil {
		return nil
	}
	anchors, err := c.anchors.Anchors(ctx, key)
	if err != nil {
		c.logger.Warn("anchor lookup failed, estimation tiers run without anchors",
			"symbol", key, "error", err)
		return nil
	}
	return anchors
}

// tierNeedsAnchors reports whether the tier consumes transaction fills.
// Anchors are loaded lazily: most requests never reach these tiers.
func tierNeedsAnchors(t model.Tier) bool {
	return t == model.TierProxyEstimated || t == model.TierInterpolated
}

func missingSpan(missing map[string]time.Time) (time.Time, time.Time) {
	var start, end time.Time
	first := true
	for _, d := range missing {
		if first || d.Before(start) {
			start = d
		}
		if first || d.After(end) {
			end = d
		}
		first = false
	}
	return start, end
}
