package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ymorita/priceradar/internal/drivers"
	"github.com/ymorita/priceradar/internal/model"
)

type fakeDriver struct {
	calls []time.Time
	err   error
}

func (f *fakeDriver) Name() string     { return "fake" }
func (f *fakeDriver) Tier() model.Tier { return model.TierProviderAPI }

func (f *fakeDriver) FetchDates(ctx context.Context, req drivers.Request) ([]model.PricePoint, error) {
	f.calls = append(f.calls, time.Now())
	return nil, f.err
}

func TestWrap_EnforcesMinimumInterval(t *testing.T) {
	inner := &fakeDriver{}
	l := Wrap(inner, 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := l.FetchDates(context.Background(), drivers.Request{}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	// First call is immediate (burst 1); the next two wait 50ms each.
	elapsed := time.Since(start)
	if elapsed < 100*time.Millisecond {
		t.Fatalf("3 calls completed in %v, want >= 100ms", elapsed)
	}
	if len(inner.calls) != 3 {
		t.Fatalf("inner called %d times, want 3", len(inner.calls))
	}
}

func TestWrap_ContextCancelAbortsWait(t *testing.T) {
	inner := &fakeDriver{}
	l := Wrap(inner, time.Hour)

	// Consume the initial burst token.
	if _, err := l.FetchDates(context.Background(), drivers.Request{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.FetchDates(ctx, drivers.Request{})
	if err == nil {
		t.Fatal("want error from canceled wait")
	}
	if len(inner.calls) != 1 {
		t.Fatalf("inner called %d times, want 1", len(inner.calls))
	}
}

func TestWrap_ErrorsPassThroughUnchanged(t *testing.T) {
	sentinel := errors.New("provider exploded")
	l := Wrap(&fakeDriver{err: sentinel}, time.Millisecond)

	_, err := l.FetchDates(context.Background(), drivers.Request{})
	if !errors.Is(err, sentinel) {
		t.Fatalf("want pass-through error, got %v", err)
	}
}
