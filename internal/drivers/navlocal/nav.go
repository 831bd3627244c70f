// Package navlocal serves official NAV history for Japanese mutual funds
// from locally provided CSVs (one file per ISIN). It is the authoritative
// tier: remote NAV download is deliberately not attempted, so the data is
// only as current as the files on disk.
package navlocal

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/model"
)

// fundISINs maps fund names to the ISIN their NAV file is keyed by.
var fundISINs = map[string]string{
	"eMAXIS Slim 米国株式(S&P500)":          "JP90C000J7J5",
	"eMAXIS Slim 全世界株式(オール・カントリー)":     "JP90C000H5S9",
	"三菱UFJ 純金ファンド(ファインゴールド)":          "JP90C0003K84",
	"eMAXIS Slim 先進国リートインデックス(除く日本)":  "JP90C000M4F5",
	"野村Jリートファンド":                      "JP90C0008K80",
	"NZAM・ベータ 米国REIT":                  "JP3027680009",
	"eMAXIS Slim 先進国債券インデックス(除く日本)":   "JP90C000H5R1",
	"たわらノーロード インド株式Nifty50":           "JP90C000N7F5",
	"ニッセイSOX指数インデックスファンド(米国半導体株)":    "JP90C000E8T2",
	"iFreeNEXT FANG+インデックス":            "JP90C000JDW4",
}

type Driver struct {
	dir    string
	logger *slog.Logger
}

// NewDriver reads NAV CSVs from dir ({isin}.csv).
func NewDriver(dir string, logger *slog.Logger) *Driver {
	return &Driver{dir: dir, logger: logger.With("driver", "navlocal")}
}

func (d *Driver) Name() string     { return "navlocal" }
func (d *Driver) Tier() model.Tier { return model.TierAuthoritative }

func (d *Driver) FetchDates(ctx context.Context, req drivers.Request) ([]model.PricePoint, error) {
	isin, ok := lookupISIN(req.Name)
	if !ok {
		return nil, fmt.Errorf("no ISIN mapping for %q: %w", req.Name, drivers.ErrUnsupported)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(d.dir, isin+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no NAV file for %s: %w", isin, drivers.ErrUnsupported)
		}
		return nil, fmt.Errorf("open NAV file %s: %w", path, err)
	}
	defer f.Close()

	points, err := parseNAVFile(f, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("parse NAV file %s: %w", path, err)
	}

	d.logger.Info("loaded official NAV history", "symbol", req.CanonicalKey, "isin", isin, "points", len(points))
	return points, nil
}

// lookupISIN matches exactly first, then by normalized containment so
// name variants from different CSV exports still resolve.
func lookupISIN(name string) (string, bool) {
	if isin, ok := fundISINs[name]; ok {
		return isin, true
	}
	norm := normalizeName(name)
	if norm == "" {
		return "", false
	}
	for fund, isin := range fundISINs {
		fn := normalizeName(fund)
		if strings.Contains(norm, fn) || strings.Contains(fn, norm) {
			return isin, true
		}
	}
	return "", false
}

func normalizeName(s string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "", "　", "").Replace(strings.TrimSpace(s)))
}

// parseNAVFile reads a NAV CSV with flexible headers: the date column
// contains "date" or 基準日, the NAV column "nav" or 基準価額.
func parseNAVFile(f *os.File, start, end time.Time) ([]model.PricePoint, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	dateCol, navCol := -1, -1
	for i, col := range header {
		c := strings.ToLower(strings.TrimSpace(col))
		if dateCol < 0 && (strings.Contains(c, "date") || strings.Contains(col, "基準日")) {
			dateCol = i
		}
		if navCol < 0 && (strings.Contains(c, "nav") || strings.Contains(col, "基準価額")) {
			navCol = i
		}
	}
	if dateCol < 0 || navCol < 0 {
		return nil, fmt.Errorf("unrecognized NAV header %v", header)
	}

	start, end = model.Day(start), model.Day(end)
	var points []model.PricePoint
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		if len(rec) <= dateCol || len(rec) <= navCol {
			continue
		}
		day, err := parseNAVDate(rec[dateCol])
		if err != nil {
			continue
		}
		if day.Before(start) || day.After(end) {
			continue
		}
		nav, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(rec[navCol]), ",", ""), 64)
		if err != nil {
			continue
		}
		points = append(points, model.PricePoint{Date: day, Price: nav, Currency: "JPY"})
	}
	return points, nil
}

func parseNAVDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{model.DateLayout, "2006/01/02", "2006年1月2日"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized NAV date %q", s)
}
