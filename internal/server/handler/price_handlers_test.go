package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ymorita/priceradar/internal/model"
	"github.com/ymorita/priceradar/internal/resolver"
)

type stubService struct {
	series model.PriceSeries
	err    error

	gotSymbol   string
	gotCurrency string
	gotStart    time.Time
	gotEnd      time.Time
}

func (s *stubService) GetPriceHistory(_ context.Context, symbol, _ string, start, end time.Time, targetCurrency string) (model.PriceSeries, error) {
	s.gotSymbol = symbol
	s.gotCurrency = targetCurrency
	s.gotStart = start
	s.gotEnd = end
	return s.series, s.err
}

func newTestServer(svc PriceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPriceHandler(svc, "JPY")
	r := gin.New()
	v1 := r.Group("/v1/")
	v1.GET("/price-history", h.GetHistory)
	v1.GET("/health", h.Health)
	return r
}

func TestGetHistory_OK(t *testing.T) {
	svc := &stubService{series: model.PriceSeries{
		Symbol: "4755",
		Points: []model.PricePoint{
			{Date: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), Price: 950, Currency: "JPY"},
		},
		Source: model.TierScraped,
	}}
	r := newTestServer(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/price-history?symbol=4755.T&start=2024-01-04&end=2024-01-10", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "4755.T", svc.gotSymbol)
	require.Equal(t, "JPY", svc.gotCurrency, "missing currency falls back to the configured default")
	require.Equal(t, "2024-01-04", model.DateKey(svc.gotStart))
	require.Equal(t, "2024-01-10", model.DateKey(svc.gotEnd))

	var body model.PriceSeries
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "4755", body.Symbol)
	require.Equal(t, model.TierScraped, body.Source)
	require.Len(t, body.Points, 1)
}

func TestGetHistory_CurrencyOverride(t *testing.T) {
	svc := &stubService{}
	r := newTestServer(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/price-history?symbol=SPY&start=2024-01-04&end=2024-01-10&currency=USD", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "USD", svc.gotCurrency)
}

func TestGetHistory_BadDates(t *testing.T) {
	r := newTestServer(&stubService{})

	for _, target := range []string{
		"/v1/price-history?symbol=4755&start=04-01-2024&end=2024-01-10",
		"/v1/price-history?symbol=4755&start=2024-01-04",
		"/v1/price-history?symbol=4755&start=2024-01-10&end=2024-01-04",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equalf(t, http.StatusBadRequest, w.Code, "target %s", target)
	}
}

func TestGetHistory_InvalidIdentifier(t *testing.T) {
	svc := &stubService{err: resolver.ErrInvalidIdentifier}
	r := newTestServer(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/price-history?start=2024-01-04&end=2024-01-10", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestServer(&stubService{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
