package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderTypeMarket    = "market"
	OrderTypeLimit     = "limit"
	OrderTypeStop      = "stop"
	OrderTypeStopLimit = "stop_limit"

	OrderSideBuy  = "buy"
	OrderSideSell = "sell"

	OrderStatusPending   = "pending"
	OrderStatusFilled    = "filled"
	OrderStatusPartial   = "partial"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)

// Order is a submitted order. Filled orders are immutable apart from status bookkeeping.
type Order struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"size:64;not null;index;uniqueIndex:idx_orders_user_client_order,priority:1" json:"user_id"`
	// ClientOrderID is the caller supplied idempotency key.
	ClientOrderID    *string          `gorm:"size:64;uniqueIndex:idx_orders_user_client_order,priority:2" json:"client_order_id,omitempty"`
	PositionID       *uint            `gorm:"index" json:"position_id,omitempty"`
	Symbol           string           `gorm:"size:30;not null;index" json:"symbol"`
	OrderType        string           `gorm:"size:20;not null" json:"order_type"`
	Side             string           `gorm:"size:10;not null" json:"side"`
	Quantity         decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"quantity"`
	Price            *decimal.Decimal `gorm:"type:decimal(20,8)" json:"price,omitempty"`
	StopLoss         *decimal.Decimal `gorm:"type:decimal(20,8)" json:"stop_loss,omitempty"`
	TakeProfit       *decimal.Decimal `gorm:"type:decimal(20,8)" json:"take_profit,omitempty"`
	Status           string           `gorm:"size:20;not null;default:pending;index" json:"status"`
	FilledQuantity   decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"filled_quantity"`
	AverageFillPrice decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"average_fill_price"`
	Commission       decimal.Decimal  `gorm:"type:decimal(20,8);not null;default:0" json:"commission"`
	ExecutedAt       *time.Time       `json:"executed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func IsKnownOrderType(orderType string) bool {
	switch orderType {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit:
		return true
	}
	return false
}

// RequiresPrice reports whether the order type carries its own price.
func RequiresPrice(orderType string) bool {
	return orderType == OrderTypeLimit || orderType == OrderTypeStop || orderType == OrderTypeStopLimit
}

func IsKnownOrderSide(side string) bool {
	return side == OrderSideBuy || side == OrderSideSell
}
