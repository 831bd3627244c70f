package yahooweb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ymorita/priceradar/internal/model"
)

// dateLayouts accepted in the history table's first column. The JP site
// renders 2024年1月5日, the global one Jan 5, 2024.
var dateLayouts = []string{
	"2006年1月2日",
	"2006/01/02",
	model.DateLayout,
	"Jan 2, 2006",
}

func parseRowDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized table date %q", s)
}

func parseRowNumber(s string) (float64, error) {
	s = strings.NewReplacer(",", "", "，", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" || s == "-" || s == "---" || s == "—" {
		return 0, fmt.Errorf("empty table cell")
	}
	return strconv.ParseFloat(s, 64)
}

// rowsToPoints converts raw table rows into in-range price points,
// de-duplicated by date with first-seen wins. Pagination overlap and
// sticky header rows re-read after a page advance make duplicate dates
// routine, and the newest page is read first.
func rowsToPoints(rows [][]string, start, end time.Time, currency string) []model.PricePoint {
	start, end = model.Day(start), model.Day(end)
	seen := make(map[string]struct{}, len(rows))
	points := make([]model.PricePoint, 0, len(rows))

	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		day, err := parseRowDate(row[0])
		if err != nil {
			continue // header or notice row
		}
		if _, dup := seen[model.DateKey(day)]; dup {
			continue
		}
		price, err := parseRowNumber(row[closeColumn(row)])
		if err != nil {
			continue
		}
		seen[model.DateKey(day)] = struct{}{}
		if day.Before(start) || day.After(end) {
			continue
		}
		points = append(points, model.PricePoint{Date: day, Price: price, Currency: currency})
	}
	return points
}

// closeColumn picks the close-price cell. The JP history table is
// 日付/始値/高値/安値/終値(+調整後終値); fund tables are 日付/基準価額(+純資産).
func closeColumn(row []string) int {
	if len(row) >= 5 {
		return 4
	}
	return 1
}

// oldestRowDate reports the earliest parseable date on the page, used to
// stop paginating once the table has moved past the requested range.
func oldestRowDate(rows [][]string) (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		day, err := parseRowDate(row[0])
		if err != nil {
			continue
		}
		if !found || day.Before(oldest) {
			oldest = day
			found = true
		}
	}
	return oldest, found
}
