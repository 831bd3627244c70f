// Package ratelimit spaces out calls to a provider. It is purely a
// throughput governor: results, empties and errors pass through to the
// coordinator untouched.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/model"
)

// Limited wraps a driver and enforces a minimum interval between calls.
// Concurrent callers queue on the limiter; waits are cancelable via ctx.
type Limited struct {
	inner   drivers.Driver
	limiter *rate.Limiter
}

func Wrap(inner drivers.Driver, minInterval time.Duration) *Limited {
	if minInterval <= 0 {
		minInterval = time.Nanosecond
	}
	return &Limited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (l *Limited) Name() string     { return l.inner.Name() }
func (l *Limited) Tier() model.Tier { return l.inner.Tier() }

func (l *Limited) FetchDates(ctx context.Context, req drivers.Request) ([]model.PricePoint, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.FetchDates(ctx, req)
}
