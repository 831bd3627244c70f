package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

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
	"github.com/ymorita/priceradar/internal/ratelimit"
	"github.com/ymorita/priceradar/internal/repository"
	"github.com/ymorita/priceradar/internal/resolver"
	"github.com/ymorita/priceradar/internal/server/handler"
	"github.com/ymorita/priceradar/internal/server/router"
	"github.com/ymorita/priceradar/pkg/faulttolerance"
)

func main() {
	cfg := configs.AppLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	coordinator := buildCoordinator(cfg, db, logger)
	priceHandler := handler.NewPriceHandler(coordinator, cfg.TargetCurrency)

	routerConfig := &router.Config{
		PriceHandler: priceHandler,
	}
	r := router.NewRouter(routerConfig)

	logger.Info("Starting price API", "port", cfg.ServerPort)
	if err := r.Run(fmt.Sprintf(":%s", cfg.ServerPort)); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
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
