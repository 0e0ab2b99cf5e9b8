package queue

import (
	"sort"
	"time"

	"cfdpaper/src/model"

	"github.com/shopspring/decimal"
)

// MatchMode picks which resting orders an incoming order meets first.
type MatchMode int

const (
	// MatchFIFO fills against the oldest crossing order first.
	MatchFIFO MatchMode = iota
	// MatchBestPrice fills against the best price first, oldest first on ties.
	MatchBestPrice
)

// BookOrder is a resting or incoming order in the reference matcher.
// A nil Price means a market order.
type BookOrder struct {
	ID        string
	UserID    string
	Side      string
	Price     *decimal.Decimal
	Quantity  decimal.Decimal
	CreatedAt time.Time
}

// Fill is one match between an incoming order and a resting one.
type Fill struct {
	TakerID  string
	MakerID  string
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Matcher is a single-symbol price-time-priority matcher kept as a reference
// algorithm. Order submission does not go through it; positions are filled
// against the market data cache instead.
type Matcher struct {
	mode MatchMode
	bids []*BookOrder
	asks []*BookOrder
}

func NewMatcher(mode MatchMode) *Matcher {
	return &Matcher{mode: mode}
}

// Match fills o against resting opposite-side orders of other users at the
// maker's price. A limit remainder rests on the book; a market remainder is
// dropped.
func (m *Matcher) Match(o BookOrder) []Fill {
	remaining := o.Quantity
	book := &m.asks
	if o.Side == model.OrderSideSell {
		book = &m.bids
	}

	var fills []Fill
	for _, maker := range m.candidates(*book, o) {
		if !remaining.IsPositive() {
			break
		}
		qty := decimal.Min(remaining, maker.Quantity)
		fills = append(fills, Fill{TakerID: o.ID, MakerID: maker.ID, Price: *maker.Price, Quantity: qty})
		maker.Quantity = maker.Quantity.Sub(qty)
		remaining = remaining.Sub(qty)
	}
	*book = compact(*book)

	if remaining.IsPositive() && o.Price != nil {
		rest := o
		rest.Quantity = remaining
		if o.Side == model.OrderSideSell {
			m.asks = append(m.asks, &rest)
		} else {
			m.bids = append(m.bids, &rest)
		}
	}
	return fills
}

// Depth returns the number of resting bids and asks.
func (m *Matcher) Depth() (bids, asks int) {
	return len(m.bids), len(m.asks)
}

func (m *Matcher) candidates(book []*BookOrder, o BookOrder) []*BookOrder {
	var out []*BookOrder
	for _, maker := range book {
		if maker.UserID == o.UserID || maker.Price == nil {
			continue
		}
		if o.Price != nil && !crosses(o.Side, *o.Price, *maker.Price) {
			continue
		}
		out = append(out, maker)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if m.mode == MatchBestPrice && !out[i].Price.Equal(*out[j].Price) {
			if o.Side == model.OrderSideSell {
				return out[i].Price.GreaterThan(*out[j].Price)
			}
			return out[i].Price.LessThan(*out[j].Price)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// crosses reports whether a taker limit price reaches the maker price.
func crosses(takerSide string, takerPrice, makerPrice decimal.Decimal) bool {
	if takerSide == model.OrderSideSell {
		return takerPrice.LessThanOrEqual(makerPrice)
	}
	return takerPrice.GreaterThanOrEqual(makerPrice)
}

func compact(book []*BookOrder) []*BookOrder {
	out := book[:0]
	for _, o := range book {
		if o.Quantity.IsPositive() {
			out = append(out, o)
		}
	}
	return out
}
