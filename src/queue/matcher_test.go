package queue

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, time.March, 4, 15, 0, 0, 0, time.UTC)

func limit(id, user, side, price, qty string, at time.Duration) BookOrder {
	p := decimal.RequireFromString(price)
	return BookOrder{ID: id, UserID: user, Side: side, Price: &p, Quantity: decimal.RequireFromString(qty), CreatedAt: t0.Add(at)}
}

func seedAsks(m *Matcher) {
	m.Match(limit("a1", "maker-1", "sell", "151", "5", 0))
	m.Match(limit("a2", "maker-2", "sell", "150", "5", time.Second))
	m.Match(limit("a3", "maker-3", "sell", "152", "5", 2*time.Second))
}

func TestMatcherFIFOUsesArrivalOrder(t *testing.T) {
	m := NewMatcher(MatchFIFO)
	seedAsks(m)

	fills := m.Match(limit("b1", "taker", "buy", "152", "7", 3*time.Second))
	require.Len(t, fills, 2)
	require.Equal(t, "a1", fills[0].MakerID)
	require.True(t, fills[0].Price.Equal(decimal.NewFromInt(151)))
	require.True(t, fills[0].Quantity.Equal(decimal.NewFromInt(5)))
	require.Equal(t, "a2", fills[1].MakerID)
	require.True(t, fills[1].Quantity.Equal(decimal.NewFromInt(2)))

	bids, asks := m.Depth()
	require.Equal(t, 0, bids)
	require.Equal(t, 2, asks)
}

func TestMatcherBestPriceFirst(t *testing.T) {
	m := NewMatcher(MatchBestPrice)
	seedAsks(m)

	fills := m.Match(limit("b1", "taker", "buy", "152", "7", 3*time.Second))
	require.Len(t, fills, 2)
	require.Equal(t, "a2", fills[0].MakerID)
	require.Equal(t, "a1", fills[1].MakerID)
}

func TestMatcherLimitRemainderRests(t *testing.T) {
	m := NewMatcher(MatchBestPrice)
	seedAsks(m)

	// Only a2 crosses at 150.
	fills := m.Match(limit("b1", "taker", "buy", "150", "8", 3*time.Second))
	require.Len(t, fills, 1)
	require.Equal(t, "a2", fills[0].MakerID)

	bids, asks := m.Depth()
	require.Equal(t, 1, bids, "3 remaining rests as a bid")
	require.Equal(t, 2, asks)

	// A seller at 149 now hits the resting bid at the bid's price.
	fills = m.Match(limit("s1", "other", "sell", "149", "3", 4*time.Second))
	require.Len(t, fills, 1)
	require.Equal(t, "b1", fills[0].MakerID)
	require.True(t, fills[0].Price.Equal(decimal.NewFromInt(150)))
}

func TestMatcherSkipsOwnOrdersAndDropsMarketRemainder(t *testing.T) {
	m := NewMatcher(MatchFIFO)
	seedAsks(m)

	market := BookOrder{ID: "m1", UserID: "maker-1", Side: "buy", Quantity: decimal.NewFromInt(20), CreatedAt: t0.Add(time.Minute)}
	fills := m.Match(market)
	require.Len(t, fills, 2, "own ask a1 is not matched")
	require.Equal(t, "a2", fills[0].MakerID)
	require.Equal(t, "a3", fills[1].MakerID)

	bids, asks := m.Depth()
	require.Equal(t, 0, bids, "market remainder does not rest")
	require.Equal(t, 1, asks)
}
