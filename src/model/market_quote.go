package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketQuote is the latest cached price for a symbol.
type MarketQuote struct {
	Symbol    string          `gorm:"primaryKey;size:30" json:"symbol"`
	Price     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price"`
	Bid       decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"bid"`
	Ask       decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"ask"`
	High      decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"high"`
	Low       decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"low"`
	Open      decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"open"`
	Volume    decimal.Decimal `gorm:"type:decimal(28,8);not null;default:0" json:"volume"`
	Source    string          `gorm:"size:30" json:"source"`
	UpdatedAt time.Time       `gorm:"not null;index" json:"updated_at"`
}

func (MarketQuote) TableName() string {
	return "market_data_cache"
}

// IsStale reports whether the quote is older than maxAge at now.
func (q *MarketQuote) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(q.UpdatedAt) > maxAge
}
