package validation

import (
	"context"
	"strings"
	"testing"
	"time"

	"cfdpaper/src/model"
	"cfdpaper/src/trading"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 4, 15, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

type fakeProfiles struct {
	profile *model.Profile
	err     error
}

func (f *fakeProfiles) GetByUserID(context.Context, string) (*model.Profile, error) {
	return f.profile, f.err
}

type fakePositions struct {
	open   *model.Position
	called bool
}

func (f *fakePositions) FindOpen(_ context.Context, _, _, side string) (*model.Position, error) {
	f.called = true
	if f.open != nil && f.open.Side == side {
		return f.open, nil
	}
	return nil, nil
}

type fakeQuotes struct {
	quote *model.MarketQuote
	err   error
}

func (f *fakeQuotes) GetQuote(context.Context, string) (*model.MarketQuote, error) {
	return f.quote, f.err
}

func activeProfile(balance string) *model.Profile {
	return &model.Profile{
		UserID:        "u-1",
		Balance:       d(balance),
		FreeMargin:    d(balance),
		Equity:        d(balance),
		AccountStatus: model.AccountStatusActive,
		KYCStatus:     model.KYCStatusVerified,
	}
}

func quoteAt(price string, at time.Time) *model.MarketQuote {
	return &model.MarketQuote{Symbol: "AAPL", Price: d(price), UpdatedAt: at}
}

func newService(profile *model.Profile, positions *fakePositions, quote *model.MarketQuote) *Service {
	s := NewService(&fakeProfiles{profile: profile}, positions, &fakeQuotes{quote: quote}, 5*time.Minute)
	s.now = func() time.Time { return now }
	return s
}

func buy(qty string) trading.OrderRequest {
	return trading.OrderRequest{Symbol: "AAPL", OrderType: model.OrderTypeMarket, Side: model.OrderSideBuy, Quantity: d(qty)}
}

func containsText(items []string, text string) bool {
	for _, item := range items {
		if strings.Contains(item, text) {
			return true
		}
	}
	return false
}

func TestValidateAcceptsHealthyOrder(t *testing.T) {
	s := newService(activeProfile("10000"), &fakePositions{}, quoteAt("150", now))

	res, err := s.Validate(context.Background(), "u-1", buy("10"))
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.RequiredMargin)
	assert.True(t, res.RequiredMargin.Equal(d("150")))
	assert.True(t, res.MarketPrice.Equal(d("150")))
}

func TestValidateHardErrors(t *testing.T) {
	suspended := activeProfile("10000")
	suspended.AccountStatus = model.AccountStatusSuspended

	tests := []struct {
		name     string
		profile  *model.Profile
		open     *model.Position
		quote    *model.MarketQuote
		req      trading.OrderRequest
		wantText string
	}{
		{
			name: "unknown order type", profile: activeProfile("10000"), quote: quoteAt("150", now),
			req:      trading.OrderRequest{Symbol: "AAPL", OrderType: "iceberg", Side: "buy", Quantity: d("1")},
			wantText: "unknown order_type",
		},
		{
			name: "bad side", profile: activeProfile("10000"), quote: quoteAt("150", now),
			req:      trading.OrderRequest{Symbol: "AAPL", OrderType: "market", Side: "hold", Quantity: d("1")},
			wantText: "side must be buy or sell",
		},
		{
			name: "quantity too large", profile: activeProfile("10000"), quote: quoteAt("150", now),
			req: buy("1000001"), wantText: "must not exceed",
		},
		{
			name: "missing symbol", profile: activeProfile("10000"), quote: quoteAt("150", now),
			req:      trading.OrderRequest{OrderType: "market", Side: "buy", Quantity: d("1")},
			wantText: "symbol is required",
		},
		{
			name: "limit without price", profile: activeProfile("10000"), quote: quoteAt("150", now),
			req:      trading.OrderRequest{Symbol: "AAPL", OrderType: "limit", Side: "buy", Quantity: d("1")},
			wantText: "price is required",
		},
		{
			name: "buy bracket inverted", profile: activeProfile("10000"), quote: quoteAt("150", now),
			req: trading.OrderRequest{
				Symbol: "AAPL", OrderType: "market", Side: "buy", Quantity: d("1"),
				StopLoss: dp("170"), TakeProfit: dp("140"),
			},
			wantText: "below take profit",
		},
		{
			name: "sell bracket inverted", profile: activeProfile("10000"), quote: quoteAt("150", now),
			req: trading.OrderRequest{
				Symbol: "AAPL", OrderType: "market", Side: "sell", Quantity: d("1"),
				StopLoss: dp("140"), TakeProfit: dp("170"),
			},
			wantText: "above take profit",
		},
		{
			name: "no profile", profile: nil, quote: quoteAt("150", now),
			req: buy("1"), wantText: "profile not found",
		},
		{
			name: "suspended account", profile: suspended, quote: quoteAt("150", now),
			req: buy("1"), wantText: "account is suspended",
		},
		{
			name: "no market data", profile: activeProfile("10000"), quote: nil,
			req: buy("1"), wantText: "no market data available for AAPL",
		},
		{
			name: "duplicate long", profile: activeProfile("10000"), quote: quoteAt("150", now),
			open: &model.Position{Side: model.PositionSideLong},
			req:  buy("1"), wantText: "already exists",
		},
		{
			name: "insufficient margin reports shortfall", profile: activeProfile("100"), quote: quoteAt("150", now),
			req: buy("10"), wantText: "short by 50.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(tt.profile, &fakePositions{open: tt.open}, tt.quote)

			res, err := s.Validate(context.Background(), "u-1", tt.req)
			require.NoError(t, err)
			assert.False(t, res.IsValid)
			assert.Truef(t, containsText(res.Errors, tt.wantText), "errors %v do not mention %q", res.Errors, tt.wantText)
		})
	}
}

func TestValidateOppositeSideIsAllowed(t *testing.T) {
	s := newService(activeProfile("10000"), &fakePositions{open: &model.Position{Side: model.PositionSideShort}}, quoteAt("150", now))

	res, err := s.Validate(context.Background(), "u-1", buy("1"))
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateWarningsDoNotBlock(t *testing.T) {
	unverified := activeProfile("10000")
	unverified.KYCStatus = model.KYCStatusPending

	s := newService(unverified, &fakePositions{}, quoteAt("150", now.Add(-10*time.Minute)))

	res, err := s.Validate(context.Background(), "u-1", trading.OrderRequest{
		Symbol: "aapl", OrderType: "limit", Side: "buy", Quantity: d("1"), Price: dp("240"),
	})
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.True(t, containsText(res.Warnings, "deviates 60.0%"), "warnings: %v", res.Warnings)
	assert.True(t, containsText(res.Warnings, "identity verification is pending"), "warnings: %v", res.Warnings)
	assert.True(t, containsText(res.Warnings, "last updated"), "warnings: %v", res.Warnings)
}

func TestValidateLowProjectedMarginLevelWarns(t *testing.T) {
	profile := activeProfile("200")
	profile.Equity = d("200")
	s := newService(profile, &fakePositions{}, quoteAt("150", now))

	// margin 150, level (200-150)/150*100 = 33.3
	res, err := s.Validate(context.Background(), "u-1", buy("10"))
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.True(t, containsText(res.Warnings, "projected margin level 33.3%"), "warnings: %v", res.Warnings)
}

func TestValidateShortCircuitsBeforeAccountLookup(t *testing.T) {
	positions := &fakePositions{}
	s := newService(activeProfile("10000"), positions, quoteAt("150", now))

	res, err := s.Validate(context.Background(), "u-1", buy("0"))
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.False(t, positions.called)
}

func TestValidateStoreErrorIsReturned(t *testing.T) {
	s := NewService(&fakeProfiles{err: assert.AnError}, &fakePositions{}, &fakeQuotes{quote: quoteAt("150", now)}, 5*time.Minute)
	s.now = func() time.Time { return now }

	res, err := s.Validate(context.Background(), "u-1", buy("1"))
	require.Error(t, err)
	assert.Nil(t, res)
}
