package risk

import (
	"testing"

	"cfdpaper/src/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRequiredMarginAndCommission(t *testing.T) {
	tests := []struct {
		name           string
		price          decimal.Decimal
		quantity       decimal.Decimal
		wantMargin     decimal.Decimal
		wantCommission decimal.Decimal
	}{
		{name: "ten at 150", price: d("150"), quantity: d("10"), wantMargin: d("150"), wantCommission: d("1.5")},
		{name: "ten at 160", price: d("160"), quantity: d("10"), wantMargin: d("160"), wantCommission: d("1.6")},
		{name: "fractional", price: d("1.2345"), quantity: d("0.01"), wantMargin: d("0.0012345"), wantCommission: d("0.000012345")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequiredMargin(tt.price, tt.quantity); !got.Equal(tt.wantMargin) {
				t.Fatalf("margin: want %s got %s", tt.wantMargin, got)
			}
			if got := Commission(tt.price, tt.quantity); !got.Equal(tt.wantCommission) {
				t.Fatalf("commission: want %s got %s", tt.wantCommission, got)
			}
		})
	}
}

func TestPnL(t *testing.T) {
	assert.True(t, PnL(model.PositionSideLong, d("150"), d("160"), d("10")).Equal(d("100")))
	assert.True(t, PnL(model.PositionSideShort, d("150"), d("160"), d("10")).Equal(d("-100")))
	assert.True(t, PnL(model.PositionSideShort, d("150"), d("140"), d("2")).Equal(d("20")))
	assert.True(t, PnLPerUnit(model.PositionSideLong, d("150"), d("150")).IsZero())
}

func TestMarginReleased(t *testing.T) {
	assert.True(t, MarginReleased(d("150"), d("4"), d("10")).Equal(d("60")))
	assert.True(t, MarginReleased(d("150"), d("10"), d("10")).Equal(d("150")))
	assert.True(t, MarginReleased(d("150"), d("1"), decimal.Zero).IsZero())
}

func TestProjectedMarginLevel(t *testing.T) {
	level, ok := ProjectedMarginLevel(d("10000"), d("150"))
	assert.True(t, ok)
	assert.True(t, level.GreaterThan(MinMarginLevel))

	level, ok = ProjectedMarginLevel(d("120"), d("100"))
	assert.True(t, ok)
	assert.True(t, level.Equal(d("20")))

	_, ok = ProjectedMarginLevel(d("100"), decimal.Zero)
	assert.False(t, ok)
}

func TestPriceDeviation(t *testing.T) {
	assert.True(t, PriceDeviation(d("240"), d("150")).Equal(d("0.6")))
	assert.True(t, PriceDeviation(d("75"), d("150")).Equal(d("0.5")))
	assert.True(t, PriceDeviation(d("75"), decimal.Zero).IsZero())
}

func TestEvaluateMarginCall(t *testing.T) {
	tests := []struct {
		name       string
		balance    decimal.Decimal
		marginUsed decimal.Decimal
		unrealized decimal.Decimal
		want       bool
	}{
		{name: "healthy account", balance: d("10000"), marginUsed: d("1000"), unrealized: d("-500"), want: false},
		{name: "equity below threshold", balance: d("0"), marginUsed: d("1000"), unrealized: d("-900"), want: true},
		{name: "exactly at threshold", balance: d("0"), marginUsed: d("1000"), unrealized: d("-800"), want: false},
		{name: "no margin in use", balance: d("-50"), marginUsed: d("0"), unrealized: d("0"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := EvaluateMarginCall(tt.balance, tt.marginUsed, tt.unrealized)
			assert.Equal(t, tt.want, mc.Triggered)
			assert.True(t, mc.Threshold.Equal(tt.marginUsed.Mul(MarginCallRatio)))
		})
	}
}
