package fx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ymorita/priceradar/internal/model"
)

type stubSource struct {
	series model.PriceSeries
	err    error

	gotSymbol   string
	gotCurrency string
}

func (s *stubSource) GetPriceHistory(_ context.Context, symbol, _ string, _, _ time.Time, targetCurrency string) (model.PriceSeries, error) {
	s.gotSymbol = symbol
	s.gotCurrency = targetCurrency
	return s.series, s.err
}

func d(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func TestBuildForwardFilledMap_FillsGapsBetweenObservations(t *testing.T) {
	src := &stubSource{series: model.PriceSeries{
		Symbol: "USDJPY=X",
		Points: []model.PricePoint{
			{Date: d(2), Price: 144.5}, // Tuesday
			{Date: d(5), Price: 145.2}, // Friday; 6th-8th are market-closed
			{Date: d(9), Price: 146.0},
		},
	}}

	rates, err := BuildForwardFilledMap(context.Background(), src, "USDJPY=X", d(1), d(10))
	require.NoError(t, err)

	require.Equal(t, 144.5, rates["2024-01-02"])
	require.Equal(t, 144.5, rates["2024-01-03"], "gap inherits the last published rate")
	require.Equal(t, 144.5, rates["2024-01-04"])
	require.Equal(t, 145.2, rates["2024-01-06"], "weekend inherits Friday's rate")
	require.Equal(t, 145.2, rates["2024-01-08"])
	require.Equal(t, 146.0, rates["2024-01-09"])
	require.Equal(t, 146.0, rates["2024-01-10"], "trailing dates carry the last rate forward")
}

func TestBuildForwardFilledMap_LeadingDatesStayAbsent(t *testing.T) {
	src := &stubSource{series: model.PriceSeries{
		Points: []model.PricePoint{{Date: d(5), Price: 145.2}},
	}}

	rates, err := BuildForwardFilledMap(context.Background(), src, "USDJPY=X", d(1), d(7))
	require.NoError(t, err)

	for day := 1; day <= 4; day++ {
		_, ok := rates[model.DateKey(d(day))]
		require.Falsef(t, ok, "no rate may exist before the first observation (day %d)", day)
	}
	require.Equal(t, 145.2, rates["2024-01-05"])
	require.Equal(t, 145.2, rates["2024-01-07"])
}

func TestBuildForwardFilledMap_StopsConversionRecursion(t *testing.T) {
	src := &stubSource{}
	_, err := BuildForwardFilledMap(context.Background(), src, "USDJPY=X", d(1), d(2))
	require.NoError(t, err)
	require.Equal(t, "USDJPY=X", src.gotSymbol)
	require.Empty(t, src.gotCurrency, "the pair itself must be fetched without a target currency")
}

func TestBuildForwardFilledMap_PropagatesFetchError(t *testing.T) {
	boom := errors.New("pair unavailable")
	src := &stubSource{err: boom}
	_, err := BuildForwardFilledMap(context.Background(), src, "USDJPY=X", d(1), d(2))
	require.ErrorIs(t, err, boom)
}
