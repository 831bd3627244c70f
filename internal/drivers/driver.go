// Package drivers defines the source-tier strategy interface the fetch
// coordinator iterates over, plus the error vocabulary every tier shares.
// Each concrete tier lives in its own subpackage.
package drivers

import (
	"context"
	"errors"
	"time"

	"github.com/ymorita/priceradar/internal/model"
)

var (
	// ErrUnsupported means the tier deterministically cannot serve this
	// asset (no provider mapping, no proxy mapping, no anchors). The
	// coordinator skips to the next tier; it is not a failure.
	ErrUnsupported = errors.New("driver: asset not supported by this source")

	// ErrNotFound is a definitive negative from the provider. It is not
	// retried within the tier.
	ErrNotFound = errors.New("driver: asset not found at provider")

	// ErrTransient marks timeouts, rate-limit responses and detached
	// pages. Transient failures are retried with backoff inside the
	// tier before counting as a tier failure.
	ErrTransient = errors.New("driver: transient provider error")
)

// Request describes one fetch for one canonical asset over a date range.
type Request struct {
	CanonicalKey string
	Name         string
	Start        time.Time
	End          time.Time

	// Anchors carries known transaction fill prices. Only the
	// estimator and interpolation tiers consume them.
	Anchors []model.Anchor
}

// Driver is one data-source tier. Implementations return the points they
// could produce inside [Start, End]; partial results are normal. An empty
// result with a nil error means the source had nothing for the range.
type Driver interface {
	Name() string
	Tier() model.Tier
	FetchDates(ctx context.Context, req Request) ([]model.PricePoint, error)
}
