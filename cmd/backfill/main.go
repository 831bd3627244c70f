package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ymorita/priceradar/configs"
	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/drivers/interp"
	"github.com/ymorita/priceradar/internal/drivers/navlocal"
	"github.com/ymorita/priceradar/internal/drivers/proxyindex"
	"github.com/ymorita/priceradar/internal/drivers/twelvedata"
	"github.com/ymorita/priceradar/internal/drivers/yahooweb"
	"github.com/ymorita/priceradar/internal/fetcher"
	"github.com/ymorita/priceradar/internal/model"
	"github.com/ymorita/priceradar/internal/ratelimit"
	"github.com/ymorita/priceradar/internal/repository"
	"github.com/ymorita/priceradar/internal/resolver"
	"github.com/ymorita/priceradar/pkg/faulttolerance"
)

// backfill walks every holding and warms the price cache over the
// configured lookback window, one request per holding in parallel.
func main() {
	cfg := configs.AppLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var holdings []model.Holding
	if err := db.WithContext(ctx).Find(&holdings).Error; err != nil {
		log.Fatalf("Failed to load holdings: %v", err)
	}
	if len(holdings) == 0 {
		logger.Info("No holdings to backfill")
		return
	}

	coordinator := buildCoordinator(cfg, db, logger)

	end := model.Day(time.Now().UTC())
	start := end.AddDate(0, 0, -cfg.Backfill.LookbackDays)
	wanted := len(model.DaysBetween(start, end))

	logger.Info("Backfill starting", "holdings", len(holdings),
		"start", model.DateKey(start), "end", model.DateKey(end),
		"concurrency", cfg.Backfill.Concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Backfill.Concurrency)

	for _, h := range holdings {
		g.Go(func() error {
			series, err := coordinator.GetPriceHistory(gctx, h.Symbol, h.Name, start, end, cfg.TargetCurrency)
			if err != nil {
				logger.Error("Backfill failed for holding", "symbol", h.Symbol, "error", err)
				return nil // one bad holding must not stop the rest
			}
			logger.Info("Backfilled holding",
				"symbol", series.Symbol,
				"points", len(series.Points),
				"calendar_days", wanted,
				"source", series.Source)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Backfill aborted: %v", err)
	}
	logger.Info("Backfill complete")
}

// buildCoordinator assembles the tier ladder, strongest first.
func buildCoordinator(cfg *configs.AppConfig, db *gorm.DB, logger *slog.Logger) *fetcher.Coordinator {
	res := resolver.NewResolver()
	tickers := resolver.NewTickerMap()

	api := twelvedata.NewDriver(cfg.TwelveData.APIKey, tickers, logger)

	tiers := []drivers.Driver{
		navlocal.NewDriver(cfg.NavDir, logger),
		yahooweb.NewDriver(yahooweb.Config{
			Headless:    cfg.Scraper.Headless,
			PageTimeout: cfg.Scraper.PageTimeout,
			MaxPages:    cfg.Scraper.MaxPages,
		}, tickers, logger),
		ratelimit.Wrap(api, cfg.TwelveData.MinInterval),
		proxyindex.NewEstimator(api.FetchSeries, logger),
		interp.NewDriver(logger),
	}

	breakers := faulttolerance.NewBreakerRegistry(faulttolerance.CircuitBreakerConfig{
		MaxFailures: cfg.Breaker.MaxFailures,
		Cooldown:    cfg.Breaker.Cooldown,
	}, nil)

	return fetcher.NewCoordinator(fetcher.Params{
		Resolver:    res,
		Tickers:     tickers,
		Cache:       repository.NewGormPriceRepository(db),
		Anchors:     fetcher.NewGormAnchorSource(db, res),
		Tiers:       tiers,
		Breakers:    breakers,
		TierTimeout: cfg.TierTimeout,
		Logger:      logger,
	})
}
