package validation

import (
	"context"
	"fmt"
	"time"

	"cfdpaper/src/model"
	"cfdpaper/src/risk"
	"cfdpaper/src/tp_sl"
	"cfdpaper/src/trading"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Result is the pre-flight verdict on an order. Warnings never block.
type Result struct {
	IsValid        bool             `json:"is_valid"`
	Errors         []string         `json:"errors"`
	Warnings       []string         `json:"warnings"`
	MarketPrice    *decimal.Decimal `json:"market_price,omitempty"`
	RequiredMargin *decimal.Decimal `json:"required_margin,omitempty"`
}

func (r *Result) fail(format string, args ...interface{}) *Result {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.IsValid = false
	return r
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

type ProfileReader interface {
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

type PositionFinder interface {
	FindOpen(ctx context.Context, userID, symbol, side string) (*model.Position, error)
}

type QuoteReader interface {
	GetQuote(ctx context.Context, symbol string) (*model.MarketQuote, error)
}

// Service runs read-only checks against profiles, positions and quotes.
type Service struct {
	profiles    ProfileReader
	positions   PositionFinder
	quotes      QuoteReader
	quoteMaxAge time.Duration
	now         func() time.Time
	log         *logrus.Entry
}

func NewService(
	profiles ProfileReader,
	positions PositionFinder,
	quotes QuoteReader,
	quoteMaxAge time.Duration,
) *Service {
	return &Service{
		profiles:    profiles,
		positions:   positions,
		quotes:      quotes,
		quoteMaxAge: quoteMaxAge,
		now:         time.Now,
		log:         logrus.WithField("component", "validation"),
	}
}

// Validate checks req for userID. Business failures are reported in the
// result; the error return is reserved for store failures.
//
// Checks run in order and stop at the first step that produced an error:
// shape, price sanity, SL/TP ordering, account status, KYC, position and
// margin, projected margin level.
func (s *Service) Validate(
	ctx context.Context,
	userID string,
	req trading.OrderRequest,
) (*Result, error) {
	req.Normalize()
	res := &Result{IsValid: true, Errors: []string{}, Warnings: []string{}}

	// 1. shape
	if problems := req.ShapeErrors(); len(problems) > 0 {
		for _, p := range problems {
			res.fail("%s", p)
		}
		return res, nil
	}

	quote, err := s.quotes.GetQuote(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("load quote %s: %w", req.Symbol, err)
	}
	if quote != nil && quote.Price.IsPositive() {
		price := quote.Price
		res.MarketPrice = &price
	}

	// 2. price sanity
	if model.RequiresPrice(req.OrderType) && res.MarketPrice != nil {
		deviation := risk.PriceDeviation(*req.Price, *res.MarketPrice)
		if deviation.GreaterThan(risk.MaxPriceDeviation) {
			res.warn("order price %s deviates %s%% from market price %s",
				req.Price.String(), deviation.Mul(decimal.NewFromInt(100)).StringFixed(1), res.MarketPrice.String())
		}
	}

	// 3. SL/TP ordering
	if req.StopLoss != nil && req.TakeProfit != nil && !tp_sl.ValidBracket(req.Side, *req.StopLoss, *req.TakeProfit) {
		if req.Side == model.OrderSideBuy {
			return res.fail("stop loss must be below take profit for buy orders"), nil
		}
		return res.fail("stop loss must be above take profit for sell orders"), nil
	}

	// 4. account status
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return res.fail("trading profile not found"), nil
	}
	if !profile.IsActive() {
		return res.fail("account is %s, trading is not allowed", profile.AccountStatus), nil
	}

	// 5. KYC
	if !profile.IsKYCVerified() {
		res.warn("identity verification is %s", profile.KYCStatus)
	}

	// 6. position and margin
	if res.MarketPrice == nil {
		return res.fail("no market data available for %s", req.Symbol), nil
	}
	if quote.IsStale(s.now(), s.quoteMaxAge) {
		res.warn("market data for %s was last updated at %s", req.Symbol, quote.UpdatedAt.UTC().Format(time.RFC3339))
	}

	marginRequired := risk.RequiredMargin(*res.MarketPrice, req.Quantity)
	res.RequiredMargin = &marginRequired

	existing, err := s.positions.FindOpen(ctx, userID, req.Symbol, model.PositionSideFor(req.Side))
	if err != nil {
		return nil, fmt.Errorf("lookup open position: %w", err)
	}
	if existing != nil {
		return res.fail("an open %s position in %s already exists; adding to positions is not supported", existing.Side, req.Symbol), nil
	}
	if profile.FreeMargin.LessThan(marginRequired) {
		return res.fail("insufficient free margin: required %s, available %s, short by %s",
			marginRequired.StringFixed(2), profile.FreeMargin.StringFixed(2),
			marginRequired.Sub(profile.FreeMargin).StringFixed(2)), nil
	}

	// 7. projected margin level
	if level, ok := risk.ProjectedMarginLevel(profile.Equity, marginRequired); ok && level.LessThan(risk.MinMarginLevel) {
		res.warn("projected margin level %s%% is below %s%%", level.StringFixed(1), risk.MinMarginLevel.String())
	}

	s.log.WithFields(map[string]interface{}{
		"user_id":  userID,
		"symbol":   req.Symbol,
		"warnings": len(res.Warnings),
	}).Debug("Order validated")

	return res, nil
}
