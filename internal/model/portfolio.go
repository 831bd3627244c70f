package model

// Transaction is a brokerage fill owned by the ingestion layer.
// The engine reads them as interpolation and proxy anchor points.
type Transaction struct {
	ID       uint    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Symbol   string  `gorm:"column:symbol;index" json:"symbol"`
	Name     string  `gorm:"column:name" json:"name"`
	Side     string  `gorm:"column:side" json:"side"` // BUY or SELL
	Quantity float64 `gorm:"column:quantity;type:REAL" json:"quantity"`
	Amount   float64 `gorm:"column:amount;type:REAL" json:"amount"` // total fill amount, portfolio currency
	Date     string  `gorm:"column:date" json:"date"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Holding is a current position owned by the aggregation layer. The engine
// uses it to seed resolver names and to pick the backfill universe.
type Holding struct {
	Symbol   string `gorm:"column:symbol;primaryKey" json:"symbol"`
	Name     string `gorm:"column:name" json:"name"`
	Market   string `gorm:"column:market" json:"market"`
	Currency string `gorm:"column:currency" json:"currency"`
}

func (Holding) TableName() string {
	return "holdings"
}
