package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeHistory is an append-only record of a fill or a close.
type TradeHistory struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     string          `gorm:"size:64;not null;index" json:"user_id"`
	OrderID    uint            `gorm:"index" json:"order_id"`
	PositionID uint            `gorm:"index" json:"position_id"`
	Symbol     string          `gorm:"size:30;not null" json:"symbol"`
	Side       string          `gorm:"size:10;not null" json:"side"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price"`
	Commission decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"commission"`
	PnL        decimal.Decimal `gorm:"column:pnl;type:decimal(20,8);not null;default:0" json:"pnl"`
	ExecutedAt time.Time       `gorm:"not null;index" json:"executed_at"`
}

func (TradeHistory) TableName() string {
	return "trade_history"
}
