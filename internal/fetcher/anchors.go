package fetcher

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ymorita/priceradar/internal/model"
	"github.com/ymorita/priceradar/internal/resolver"
)

// AnchorSource supplies ground-truth fill prices for an asset,
// date-ordered. The estimation tiers trust these absolutely.
type AnchorSource interface {
	Anchors(ctx context.Context, canonicalKey string) ([]model.Anchor, error)
}

type gormAnchorSource struct {
	db  *gorm.DB
	res *resolver.Resolver
}

// NewGormAnchorSource derives anchors from recorded BUY/SELL transactions:
// each fill contributes (date, amount/quantity). Transactions are matched
// to the asset through the same resolver the engine uses, so suffixed or
// name-only rows still attach.
func NewGormAnchorSource(db *gorm.DB, res *resolver.Resolver) AnchorSource {
	if res == nil {
		res = resolver.NewResolver()
	}
	return &gormAnchorSource{db: db, res: res}
}

func (s *gormAnchorSource) Anchors(ctx context.Context, canonicalKey string) ([]model.Anchor, error) {
	var txs []model.Transaction
	if err := s.db.WithContext(ctx).Order("date").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	anchors := make([]model.Anchor, 0, 4)
	for _, tx := range txs {
		key, err := s.res.Resolve(tx.Symbol, tx.Name)
		if err != nil || key != canonicalKey {
			continue
		}
		if tx.Quantity <= 0 || tx.Amount <= 0 {
			continue
		}
		day, err := model.ParseDate(tx.Date)
		if err != nil {
			continue
		}
		anchors = append(anchors, model.Anchor{Date: day, Price: tx.Amount / tx.Quantity})
	}
	return anchors, nil
}
