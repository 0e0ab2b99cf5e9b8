package trading

import (
	"fmt"
	"strings"

	"cfdpaper/src/model"
	"cfdpaper/src/risk"

	"github.com/shopspring/decimal"
)

// OrderRequest is an order as submitted by a trader.
type OrderRequest struct {
	Symbol        string           `json:"symbol"`
	OrderType     string           `json:"order_type"`
	Side          string           `json:"side"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	StopLoss      *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit    *decimal.Decimal `json:"take_profit,omitempty"`
	ClientOrderID string           `json:"client_order_id,omitempty"`
}

// Normalize uppercases the symbol and lowercases enum fields.
func (r *OrderRequest) Normalize() {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	r.OrderType = strings.ToLower(strings.TrimSpace(r.OrderType))
	r.Side = strings.ToLower(strings.TrimSpace(r.Side))
	r.ClientOrderID = strings.TrimSpace(r.ClientOrderID)
}

// ShapeErrors returns the field level problems of the request, in check order.
func (r *OrderRequest) ShapeErrors() []string {
	var problems []string
	if r.Symbol == "" {
		problems = append(problems, "symbol is required")
	}
	if r.OrderType == "" {
		problems = append(problems, "order_type is required")
	} else if !model.IsKnownOrderType(r.OrderType) {
		problems = append(problems, fmt.Sprintf("unknown order_type %q", r.OrderType))
	}
	if r.Side == "" {
		problems = append(problems, "side is required")
	} else if !model.IsKnownOrderSide(r.Side) {
		problems = append(problems, fmt.Sprintf("side must be buy or sell, got %q", r.Side))
	}
	switch {
	case !r.Quantity.IsPositive():
		problems = append(problems, "quantity must be greater than 0")
	case r.Quantity.LessThan(risk.MinQuantity):
		problems = append(problems, fmt.Sprintf("quantity must be at least %s", risk.MinQuantity))
	case r.Quantity.GreaterThan(risk.MaxQuantity):
		problems = append(problems, fmt.Sprintf("quantity must not exceed %s", risk.MaxQuantity))
	}
	if model.RequiresPrice(r.OrderType) && (r.Price == nil || !r.Price.IsPositive()) {
		problems = append(problems, fmt.Sprintf("price is required and must be positive for %s orders", r.OrderType))
	}
	return problems
}

// CloseRequest closes all or part of a position. Nil fields take defaults.
type CloseRequest struct {
	PositionID    uint             `json:"position_id"`
	CloseQuantity *decimal.Decimal `json:"close_quantity,omitempty"`
	ClosePrice    *decimal.Decimal `json:"close_price,omitempty"`
}

// Scope limits a mark-to-market run. Empty fields match everything.
type Scope struct {
	UserID  string   `json:"user_id,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// Normalize trims the user id and uppercases symbols.
func (s *Scope) Normalize() {
	s.UserID = strings.TrimSpace(s.UserID)
	if s.Symbols == nil {
		return
	}
	symbols := make([]string, len(s.Symbols))
	for i, symbol := range s.Symbols {
		symbols[i] = strings.ToUpper(strings.TrimSpace(symbol))
	}
	s.Symbols = symbols
}

func (s Scope) includes(symbol string) bool {
	if len(s.Symbols) == 0 {
		return true
	}
	for _, candidate := range s.Symbols {
		if candidate == symbol {
			return true
		}
	}
	return false
}
