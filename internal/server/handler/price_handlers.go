package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ymorita/priceradar/internal/model"
	"github.com/ymorita/priceradar/internal/resolver"
)

// PriceService is the slice of the fetch coordinator the HTTP layer uses.
type PriceService interface {
	GetPriceHistory(ctx context.Context, symbol, name string, start, end time.Time, targetCurrency string) (model.PriceSeries, error)
}

type PriceHandler struct {
	priceService    PriceService
	defaultCurrency string
}

func NewPriceHandler(service PriceService, defaultCurrency string) *PriceHandler {
	return &PriceHandler{
		priceService:    service,
		defaultCurrency: defaultCurrency,
	}
}

// GetHistory serves GET /v1/price-history. A request that cannot be
// resolved or parsed is the caller's fault (400); every source-side
// problem degrades to a shorter series, still 200.
func (h *PriceHandler) GetHistory(c *gin.Context) {
	symbol := c.Query("symbol")
	name := c.Query("name")

	start, err := model.ParseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a YYYY-MM-DD date"})
		return
	}
	end, err := model.ParseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a YYYY-MM-DD date"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end precedes start"})
		return
	}

	currency := c.Query("currency")
	if currency == "" {
		currency = h.defaultCurrency
	}

	series, err := h.priceService.GetPriceHistory(c.Request.Context(), symbol, name, start, end, currency)
	if err != nil {
		if errors.Is(err, resolver.ErrInvalidIdentifier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "symbol or name is required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, series)
}

func (h *PriceHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
