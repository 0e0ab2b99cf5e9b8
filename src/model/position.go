package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionSideLong  = "long"
	PositionSideShort = "short"
)

// Position is an open leveraged position. Fully closed positions are deleted.
type Position struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	UserID           string           `gorm:"size:64;not null;uniqueIndex:idx_positions_user_symbol_side,priority:1" json:"user_id"`
	Symbol           string           `gorm:"size:30;not null;uniqueIndex:idx_positions_user_symbol_side,priority:2" json:"symbol"`
	Side             string           `gorm:"size:10;not null;uniqueIndex:idx_positions_user_symbol_side,priority:3" json:"side"`
	Quantity         decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"quantity"`
	OriginalQuantity decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"original_quantity"`
	EntryPrice       decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"entry_price"`
	CurrentPrice     decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"current_price"`
	UnrealizedPnL    decimal.Decimal  `gorm:"column:unrealized_pnl;type:decimal(20,8);not null;default:0" json:"unrealized_pnl"`
	RealizedPnL      decimal.Decimal  `gorm:"column:realized_pnl;type:decimal(20,8);not null;default:0" json:"realized_pnl"`
	MarginUsed       decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"margin_used"`
	StopLoss         *decimal.Decimal `gorm:"type:decimal(20,8)" json:"stop_loss,omitempty"`
	TakeProfit       *decimal.Decimal `gorm:"type:decimal(20,8)" json:"take_profit,omitempty"`
	OpenedAt         time.Time        `gorm:"not null" json:"opened_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// PositionSideFor maps an order side to the side of the position it opens.
func PositionSideFor(orderSide string) string {
	if orderSide == OrderSideSell {
		return PositionSideShort
	}
	return PositionSideLong
}

// ClosingOrderSide returns the order side that reduces a position.
func ClosingOrderSide(positionSide string) string {
	if positionSide == PositionSideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}
