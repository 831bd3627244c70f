package model

import "time"

// PriceHistory is one cached daily price for a canonical asset.
// There is at most one row per (symbol, date); a row is only replaced
// by an equal-or-stronger source tier (enforced in the repository).
type PriceHistory struct {
	Symbol    string    `gorm:"column:symbol;primaryKey" json:"symbol"`
	Date      string    `gorm:"column:date;primaryKey" json:"date"`
	Price     float64   `gorm:"column:price;type:REAL" json:"price"`
	Currency  string    `gorm:"column:currency" json:"currency"`
	Source    Tier      `gorm:"column:source" json:"source"`
	FetchedAt time.Time `gorm:"column:fetched_at" json:"fetched_at"`
}

func (PriceHistory) TableName() string {
	return "price_history"
}

// Day returns the row's calendar date. Rows with a malformed date
// column collapse to the zero time.
func (p PriceHistory) Day() time.Time {
	t, _ := ParseDate(p.Date)
	return t
}

// PricePoint is one (date, price) observation in a series.
type PricePoint struct {
	Date     time.Time `json:"date"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency,omitempty"`
}

// PriceSeries is the engine's return value: a date-ordered series for one
// canonical asset, labeled with the weakest tier that contributed any point.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
	Source Tier         `json:"source"`
}

// Anchor is a ground-truth price point taken from a transaction fill.
// Anchors seed the proxy estimator and the interpolation fallback.
type Anchor struct {
	Date  time.Time
	Price float64
}
