// Package repository is the persistent read-through/write-through price
// cache. It owns the tier-ranking conflict rule: a cached price is only
// ever replaced by an equal-or-stronger source tier.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/ymorita/priceradar/internal/model"
)

// PriceRepository is the cache store contract the coordinator depends on.
// Any error must be treated as "everything is missing", never as fatal.
type PriceRepository interface {
	// Get returns cached entries for one symbol over an inclusive date
	// range, ordered by date.
	Get(ctx context.Context, symbol, startDate, endDate string) ([]model.PriceHistory, error)
	// Put upserts entries, idempotent on (symbol, date), applying the
	// tier conflict rule per date.
	Put(ctx context.Context, entries []model.PriceHistory) error
}

type gormPriceRepository struct {
	db *gorm.DB

	// mu guards locks; each per-symbol mutex linearizes writers for
	// that symbol so the read-compare-write conflict check cannot race
	// a concurrent writer of the same key. Writers of different
	// symbols proceed in parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGormPriceRepository(db *gorm.DB) PriceRepository {
	return &gormPriceRepository{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *gormPriceRepository) Get(ctx context.Context, symbol, startDate, endDate string) ([]model.PriceHistory, error) {
	var entries []model.PriceHistory
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND date >= ? AND date <= ?", symbol, startDate, endDate).
		Order("date").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("query price cache for %s: %w", symbol, err)
	}
	return entries, nil
}

func (r *gormPriceRepository) Put(ctx context.Context, entries []model.PriceHistory) error {
	if len(entries) == 0 {
		return nil
	}

	bySymbol := make(map[string][]model.PriceHistory)
	for _, e := range entries {
		bySymbol[e.Symbol] = append(bySymbol[e.Symbol], e)
	}

	for symbol, group := range bySymbol {
		if err := r.putSymbol(ctx, symbol, group); err != nil {
			return err
		}
	}
	return nil
}

func (r *gormPriceRepository) putSymbol(ctx context.Context, symbol string, entries []model.PriceHistory) error {
	lock := r.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			var existing model.PriceHistory
			err := tx.Where("symbol = ? AND date = ?", entry.Symbol, entry.Date).
				First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&entry).Error; err != nil {
					return fmt.Errorf("insert price %s@%s: %w", entry.Symbol, entry.Date, err)
				}
			case err != nil:
				return fmt.Errorf("read price %s@%s: %w", entry.Symbol, entry.Date, err)
			default:
				// A weaker tier never downgrades a stronger cached entry.
				if entry.Source.Rank() < existing.Source.Rank() {
					continue
				}
				if err := tx.Model(&model.PriceHistory{}).
					Where("symbol = ? AND date = ?", entry.Symbol, entry.Date).
					Updates(map[string]any{
						"price":      entry.Price,
						"currency":   entry.Currency,
						"source":     entry.Source,
						"fetched_at": entry.FetchedAt,
					}).Error; err != nil {
					return fmt.Errorf("update price %s@%s: %w", entry.Symbol, entry.Date, err)
				}
			}
		}
		return nil
	})
}

func (r *gormPriceRepository) symbolLock(symbol string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[symbol] = lock
	}
	return lock
}
