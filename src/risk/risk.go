package risk

import (
	"cfdpaper/src/model"

	"github.com/shopspring/decimal"
)

// ----- account rules -----

var (
	// MarginRate is the flat share of notional reserved as collateral.
	MarginRate = decimal.RequireFromString("0.10")
	// CommissionRate is charged on notional, 10 bps.
	CommissionRate = decimal.RequireFromString("0.001")
	// MarginCallRatio is the fraction of used margin below which equity triggers suspension.
	MarginCallRatio = decimal.RequireFromString("0.20")
	// MaxPriceDeviation is the allowed distance of an order price from market before a warning.
	MaxPriceDeviation = decimal.RequireFromString("0.50")
	// MinMarginLevel is the projected margin level, in percent, below which a warning is raised.
	MinMarginLevel = decimal.NewFromInt(50)

	MinQuantity = decimal.RequireFromString("0.01")
	MaxQuantity = decimal.NewFromInt(1_000_000)

	hundred = decimal.NewFromInt(100)
)

// ----- public API -----

func Notional(price, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity)
}

// RequiredMargin = price * quantity * MarginRate.
func RequiredMargin(price, quantity decimal.Decimal) decimal.Decimal {
	return Notional(price, quantity).Mul(MarginRate)
}

// Commission = price * quantity * CommissionRate.
func Commission(price, quantity decimal.Decimal) decimal.Decimal {
	return Notional(price, quantity).Mul(CommissionRate)
}

// PnLPerUnit is price - entry for long positions and entry - price for short ones.
func PnLPerUnit(side string, entry, price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(entry)
	if side == model.PositionSideShort {
		return diff.Neg()
	}
	return diff
}

func PnL(side string, entry, price, quantity decimal.Decimal) decimal.Decimal {
	return PnLPerUnit(side, entry, price).Mul(quantity)
}

// MarginReleased returns the share of positionMargin attributable to closeQty
// out of quantityBefore.
func MarginReleased(positionMargin, closeQty, quantityBefore decimal.Decimal) decimal.Decimal {
	if quantityBefore.IsZero() {
		return decimal.Zero
	}
	if closeQty.Equal(quantityBefore) {
		return positionMargin
	}
	return positionMargin.Mul(closeQty).Div(quantityBefore)
}

// ProjectedMarginLevel is (equity - marginRequired) / marginRequired * 100.
// ok is false when marginRequired is not positive.
func ProjectedMarginLevel(equity, marginRequired decimal.Decimal) (level decimal.Decimal, ok bool) {
	if !marginRequired.IsPositive() {
		return decimal.Zero, false
	}
	return equity.Sub(marginRequired).Div(marginRequired).Mul(hundred), true
}

// PriceDeviation is |price - reference| / reference. Zero when reference is not positive.
func PriceDeviation(price, reference decimal.Decimal) decimal.Decimal {
	if !reference.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(reference).Abs().Div(reference)
}

// MarginCall evaluates the suspension rule.
// equity = balance + marginUsed + unrealized, threshold = marginUsed * MarginCallRatio.
type MarginCall struct {
	Equity    decimal.Decimal
	Threshold decimal.Decimal
	Triggered bool
}

func EvaluateMarginCall(balance, marginUsed, unrealized decimal.Decimal) MarginCall {
	equity := balance.Add(marginUsed).Add(unrealized)
	threshold := marginUsed.Mul(MarginCallRatio)
	return MarginCall{
		Equity:    equity,
		Threshold: threshold,
		Triggered: marginUsed.IsPositive() && equity.LessThan(threshold),
	}
}
