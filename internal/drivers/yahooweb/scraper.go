// Package yahooweb scrapes daily price history from Yahoo Finance pages
// with a headless browser. It exists because the fund and Tokyo-listed
// universe this engine cares about has no stable public API; the page is
// the provider. Expensive and fragile, hence its own retry budget and a
// dedicated circuit breaker slot at the coordinator.
package yahooweb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/model"
	"github.com/ymorita/priceradar/internal/resolver"
	"github.com/ymorita/priceradar/pkg/faulttolerance"
)

// Frequency selects the row granularity of the history table.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// weeklyThresholdDays switches long backfills to weekly rows so the page
// count stays manageable.
const weeklyThresholdDays = 500

// Config tunes the scraper. Zero values get sensible defaults.
type Config struct {
	Headless    bool
	PageTimeout time.Duration // hard cap per attempt, navigation included
	MaxPages    int           // pagination cap per fetch
	PollEvery   time.Duration // row-count stability poll interval
	StablePolls int           // consecutive equal row counts to call the table ready
}

func (c *Config) defaults() {
	if c.PageTimeout <= 0 {
		c.PageTimeout = 45 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 40
	}
	if c.PollEvery <= 0 {
		c.PollEvery = 250 * time.Millisecond
	}
	if c.StablePolls <= 0 {
		c.StablePolls = 3
	}
}

type Driver struct {
	cfg     Config
	tickers *resolver.TickerMap
	retryer *faulttolerance.Retryer
	logger  *slog.Logger
}

func NewDriver(cfg Config, tickers *resolver.TickerMap, logger *slog.Logger) *Driver {
	cfg.defaults()
	retryCfg := faulttolerance.DefaultRetryConfig("yahooweb")
	retryCfg.MaxAttempts = 3
	retryCfg.BaseDelay = 2 * time.Second
	retryCfg.RetryableErrors = []error{drivers.ErrTransient}
	return &Driver{
		cfg:     cfg,
		tickers: tickers,
		retryer: faulttolerance.NewRetryer(retryCfg, logrus.New()),
		logger:  logger.With("driver", "yahooweb"),
	}
}

func (d *Driver) Name() string     { return "yahooweb" }
func (d *Driver) Tier() model.Tier { return model.TierScraped }

func (d *Driver) FetchDates(ctx context.Context, req drivers.Request) ([]model.PricePoint, error) {
	ticker, err := d.tickers.ProviderTicker(req.CanonicalKey, resolver.ProviderYahoo)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.CanonicalKey, drivers.ErrUnsupported)
	}

	freq := FrequencyDaily
	if req.End.Sub(req.Start) > weeklyThresholdDays*24*time.Hour {
		freq = FrequencyWeekly
	}

	currency := d.tickers.NativeCurrency(req.CanonicalKey)

	var points []model.PricePoint
	err = d.retryer.Execute(ctx, func() error {
		p, ferr := d.fetchOnce(ctx, ticker, req.Start, req.End, freq, currency)
		if ferr != nil {
			return ferr
		}
		points = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("scraped price history",
		"ticker", ticker, "frequency", string(freq), "points", len(points))
	return points, nil
}

// fetchOnce runs a single browser session: navigate, wait for the table
// to stop growing, pin the frequency, then walk the pages.
func (d *Driver) fetchOnce(ctx context.Context, ticker string, start, end time.Time, freq Frequency, currency string) ([]model.PricePoint, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, d.cfg.PageTimeout)
	defer cancelTimeout()

	pageURL := buildHistoryURL(ticker, start, end, freq)
	if err := chromedp.Run(tabCtx, chromedp.Navigate(pageURL)); err != nil {
		return nil, classify(err)
	}

	notFound, err := d.isNotFoundPage(tabCtx)
	if err != nil {
		return nil, classify(err)
	}
	if notFound {
		return nil, fmt.Errorf("%s: %w", ticker, drivers.ErrNotFound)
	}

	if err := d.waitTableStable(tabCtx); err != nil {
		return nil, classify(err)
	}

	if freq == FrequencyWeekly {
		if err := d.selectWeekly(tabCtx); err != nil {
			return nil, classify(err)
		}
	}

	var all [][]string
	for page := 0; page < d.cfg.MaxPages; page++ {
		rows, err := d.readRows(tabCtx)
		if err != nil {
			return nil, classify(err)
		}
		all = append(all, rows...)

		if oldest, ok := oldestRowDate(rows); ok && oldest.Before(model.Day(start)) {
			break
		}

		advanced, err := d.nextPage(tabCtx)
		if err != nil {
			return nil, classify(err)
		}
		if !advanced {
			break
		}
	}

	return rowsToPoints(all, start, end, currency), nil
}

const (
	rowsJS = `Array.from(document.querySelectorAll("table tbody tr"))
		.map(tr => Array.from(tr.querySelectorAll("th,td")).map(c => c.textContent.trim()))`

	rowCountJS = `document.querySelectorAll("table tbody tr").length`

	firstRowJS = `(() => {
		const tr = document.querySelector("table tbody tr");
		return tr ? tr.textContent.trim() : "";
	})()`

	notFoundJS = `(() => {
		const text = document.body ? document.body.innerText : "";
		return text.includes("該当する銘柄は見つかりません")
			|| text.includes("時系列情報がありません")
			|| text.includes("Symbols similar to");
	})()`

	clickNextJS = `(() => {
		const els = Array.from(document.querySelectorAll("button, a"));
		const btn = els.find(e =>
			(e.textContent.includes("次へ") || e.textContent.toLowerCase().includes("next"))
			&& !e.disabled
			&& e.getAttribute("aria-disabled") !== "true");
		if (!btn) return false;
		btn.click();
		return true;
	})()`
)

func (d *Driver) readRows(ctx context.Context) ([][]string, error) {
	var rows [][]string
	if err := chromedp.Run(ctx, chromedp.Evaluate(rowsJS, &rows)); err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Driver) isNotFoundPage(ctx context.Context) (bool, error) {
	var notFound bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(notFoundJS, &notFound)); err != nil {
		return false, err
	}
	return notFound, nil
}

// waitTableStable polls the table's row count until it holds steady for
// StablePolls consecutive polls. The page populates the table in chunks
// after load; reading it too early yields a partial first page.
func (d *Driver) waitTableStable(ctx context.Context) error {
	prev, stable := -1, 0
	for {
		var count int
		if err := chromedp.Run(ctx, chromedp.Evaluate(rowCountJS, &count)); err != nil {
			return err
		}
		if count > 0 && count == prev {
			stable++
			if stable >= d.cfg.StablePolls {
				return nil
			}
		} else {
			stable = 0
		}
		prev = count

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.PollEvery):
		}
	}
}

// selectWeekly walks an ordered list of UI strategies until one
// verifiably switches the table to weekly rows. Selection is only
// trusted after verification; a click that silently does nothing must
// not poison the parsed data.
func (d *Driver) selectWeekly(ctx context.Context) error {
	strategies := []struct {
		name  string
		apply string // JS returning true when the interaction was performed
	}{
		{"dropdown", `(() => {
			for (const sel of document.querySelectorAll("select")) {
				for (const opt of sel.options) {
					if (opt.textContent.includes("週間") || opt.value === "weekly" || opt.value === "1wk") {
						sel.value = opt.value;
						sel.dispatchEvent(new Event("change", {bubbles: true}));
						return true;
					}
				}
			}
			return false;
		})()`},
		{"radio", `(() => {
			for (const input of document.querySelectorAll("input[type=radio]")) {
				const label = input.closest("label");
				if (label && label.textContent.includes("週間")) { input.click(); return true; }
			}
			return false;
		})()`},
		{"button", `(() => {
			const els = Array.from(document.querySelectorAll("button, a, [role=tab]"));
			const btn = els.find(e => e.textContent.trim() === "週間" || e.textContent.trim() === "Weekly");
			if (!btn) return false;
			btn.click();
			return true;
		})()`},
	}

	for _, s := range strategies {
		var applied bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(s.apply, &applied)); err != nil {
			return err
		}
		if !applied {
			continue
		}
		if err := d.waitTableStable(ctx); err != nil {
			return err
		}
		ok, err := d.verifyWeekly(ctx)
		if err != nil {
			return err
		}
		if ok {
			d.logger.Debug("weekly frequency selected", "strategy", s.name)
			return nil
		}
	}

	// URL parameter is the last resort: reload with the frequency pinned.
	var loc string
	if err := chromedp.Run(ctx, chromedp.Location(&loc)); err != nil {
		return err
	}
	if err := chromedp.Run(ctx, chromedp.Navigate(withFrequencyParam(loc))); err != nil {
		return err
	}
	if err := d.waitTableStable(ctx); err != nil {
		return err
	}
	ok, err := d.verifyWeekly(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("could not verify weekly frequency selection: %w", drivers.ErrTransient)
	}
	return nil
}

func (d *Driver) verifyWeekly(ctx context.Context) (bool, error) {
	const verifyJS = `(() => {
		if (location.href.includes("frequency=w") || location.href.includes("interval=1wk")) return true;
		for (const e of document.querySelectorAll("[aria-selected=true], .selected, option:checked")) {
			if (e.textContent.includes("週間") || e.textContent.includes("Weekly")) return true;
		}
		return false;
	})()`
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(verifyJS, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

// nextPage clicks the next-page control and waits for the table to
// actually change. Returns false on the last page.
func (d *Driver) nextPage(ctx context.Context) (bool, error) {
	var before string
	if err := chromedp.Run(ctx, chromedp.Evaluate(firstRowJS, &before)); err != nil {
		return false, err
	}

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(clickNextJS, &clicked)); err != nil {
		return false, err
	}
	if !clicked {
		return false, nil
	}

	// Wait for the first row to change; an unchanged table after the
	// click means the control was present but inert (last page).
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var after string
		if err := chromedp.Run(ctx, chromedp.Evaluate(firstRowJS, &after)); err != nil {
			return false, err
		}
		if after != "" && after != before {
			if err := d.waitTableStable(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(d.cfg.PollEvery):
		}
	}
	return false, nil
}

// buildHistoryURL targets the JP site for Tokyo listings and fund codes,
// the global site for everything else.
func buildHistoryURL(ticker string, start, end time.Time, freq Frequency) string {
	if isJPTicker(ticker) {
		u := fmt.Sprintf("https://finance.yahoo.co.jp/quote/%s/history?from=%s&to=%s",
			url.PathEscape(ticker), start.Format("20060102"), end.Format("20060102"))
		if freq == FrequencyWeekly {
			u += "&timeFrame=w"
		} else {
			u += "&timeFrame=d"
		}
		return u
	}

	interval := "1d"
	if freq == FrequencyWeekly {
		interval = "1wk"
	}
	return fmt.Sprintf("https://finance.yahoo.com/quote/%s/history?period1=%d&period2=%d&interval=%s",
		url.PathEscape(ticker), start.Unix(), end.AddDate(0, 0, 1).Unix(), interval)
}

func withFrequencyParam(loc string) string {
	if strings.Contains(loc, "?") {
		return loc + "&frequency=w"
	}
	return loc + "?frequency=w"
}

// isJPTicker matches Tokyo exchange codes (1234 or 1234.T) and
// eight-character fund codes.
func isJPTicker(ticker string) bool {
	base, _ := strings.CutSuffix(ticker, ".T")
	digits := 0
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits++
		} else if c < 'A' || c > 'Z' {
			return false
		}
	}
	return (len(base) == 4 && digits == 4) || (len(base) == 8 && digits >= 4)
}

// classify folds browser-level failures into the driver error taxonomy:
// timeouts and detached targets are transient, definitive negatives and
// caller cancellations pass through.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, drivers.ErrNotFound), errors.Is(err, drivers.ErrUnsupported):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("page timed out: %w", drivers.ErrTransient)
	default:
		return fmt.Errorf("browser error: %v: %w", err, drivers.ErrTransient)
	}
}
