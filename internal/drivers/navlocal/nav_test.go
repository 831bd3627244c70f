package navlocal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ymorita/priceradar/internal/drivers"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeNAV(t *testing.T, dir, isin, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, isin+".csv"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFetchDates_ReadsLocalNAVInRange(t *testing.T) {
	dir := t.TempDir()
	writeNAV(t, dir, "JP90C000J7J5",
		"Date,NAV\n2024-01-04,25100\n2024-01-05,\"25,250\"\n2024-01-09,25400\n2024-02-01,26000\n")

	d := NewDriver(dir, discard())
	pts, err := d.FetchDates(context.Background(), drivers.Request{
		CanonicalKey: "03311187",
		Name:         "eMAXIS Slim 米国株式(S&P500)",
		Start:        day(2024, 1, 1),
		End:          day(2024, 1, 31),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 3 {
		t.Fatalf("want 3 points inside range, got %d", len(pts))
	}
	if pts[1].Price != 25250 {
		t.Errorf("comma-separated NAV parsed as %v, want 25250", pts[1].Price)
	}
	if pts[0].Currency != "JPY" {
		t.Errorf("NAV currency = %q, want JPY", pts[0].Currency)
	}
}

func TestFetchDates_JapaneseHeaderAndDates(t *testing.T) {
	dir := t.TempDir()
	writeNAV(t, dir, "JP90C000H5S9",
		"基準日,基準価額\n2024/01/04,21000\n2024年1月5日,21100\n")

	d := NewDriver(dir, discard())
	pts, err := d.FetchDates(context.Background(), drivers.Request{
		CanonicalKey: "0331418A",
		Name:         "eMAXIS Slim 全世界株式(オール・カントリー)(オルカン)",
		Start:        day(2024, 1, 1),
		End:          day(2024, 1, 31),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("want 2 points, got %d", len(pts))
	}
	if !pts[1].Date.Equal(day(2024, 1, 5)) {
		t.Errorf("japanese date parsed as %s", pts[1].Date)
	}
}

func TestFetchDates_UnsupportedWithoutMappingOrFile(t *testing.T) {
	d := NewDriver(t.TempDir(), discard())

	_, err := d.FetchDates(context.Background(), drivers.Request{
		CanonicalKey: "4755", Name: "楽天グループ",
		Start: day(2024, 1, 1), End: day(2024, 1, 31),
	})
	if !errors.Is(err, drivers.ErrUnsupported) {
		t.Fatalf("unmapped name: want ErrUnsupported, got %v", err)
	}

	_, err = d.FetchDates(context.Background(), drivers.Request{
		CanonicalKey: "01314133", Name: "野村Jリートファンド",
		Start: day(2024, 1, 1), End: day(2024, 1, 31),
	})
	if !errors.Is(err, drivers.ErrUnsupported) {
		t.Fatalf("missing file: want ErrUnsupported, got %v", err)
	}
}
