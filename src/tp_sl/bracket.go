package tp_sl

import (
	"cfdpaper/src/model"

	"github.com/shopspring/decimal"
)

type Hit string

const (
	HitNone       Hit = ""
	HitStopLoss   Hit = "stop_loss"
	HitTakeProfit Hit = "take_profit"
)

// ValidBracket reports whether stop loss and take profit are ordered for the order side.
//
// Buy:  SL < TP
// Sell: SL > TP
func ValidBracket(orderSide string, stopLoss, takeProfit decimal.Decimal) bool {
	if orderSide == model.OrderSideSell {
		return stopLoss.GreaterThan(takeProfit)
	}
	return stopLoss.LessThan(takeProfit)
}

// Check returns the level crossed by price for a position. Stop loss wins when
// both are crossed. Levels are advisory; nothing closes the position.
func Check(positionSide string, stopLoss, takeProfit *decimal.Decimal, price decimal.Decimal) Hit {
	switch positionSide {
	case model.PositionSideLong:
		if stopLoss != nil && price.LessThanOrEqual(*stopLoss) {
			return HitStopLoss
		}
		if takeProfit != nil && price.GreaterThanOrEqual(*takeProfit) {
			return HitTakeProfit
		}
	case model.PositionSideShort:
		if stopLoss != nil && price.GreaterThanOrEqual(*stopLoss) {
			return HitStopLoss
		}
		if takeProfit != nil && price.LessThanOrEqual(*takeProfit) {
			return HitTakeProfit
		}
	}
	return HitNone
}
