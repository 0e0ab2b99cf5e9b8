package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cfdpaper/src/marketdata"
	"cfdpaper/src/model"
	"cfdpaper/src/risk"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExecutionResult is the outcome of a filled order.
type ExecutionResult struct {
	Order          model.Order     `json:"order"`
	Position       *model.Position `json:"position"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	RequiredMargin decimal.Decimal `json:"required_margin"`
	Commission     decimal.Decimal `json:"commission"`
	// Replayed is set when the client order id matched an earlier submission.
	Replayed bool `json:"replayed"`
}

// ExecuteOrder fills req at the cached market price (or the order's own price
// for limit and stop types) and opens a position, reserving margin.
func (s *Service) ExecuteOrder(
	ctx context.Context,
	userID string,
	req OrderRequest,
) (*ExecutionResult, error) {
	req.Normalize()
	if problems := req.ShapeErrors(); len(problems) > 0 {
		return nil, withDetail(ErrInvalidOrder, strings.Join(problems, "; "))
	}

	log := s.log.WithFields(map[string]interface{}{
		"op":      "ExecuteOrder",
		"user_id": userID,
		"symbol":  req.Symbol,
		"side":    req.Side,
		"type":    req.OrderType,
		"qty":     req.Quantity.String(),
	})

	if req.ClientOrderID != "" {
		replayed, err := s.Replay(ctx, userID, req.ClientOrderID)
		if err != nil {
			return nil, err
		}
		if replayed != nil {
			log.WithField("order_id", replayed.Order.ID).Info("Replaying order for known client order id")
			return replayed, nil
		}
	}

	quote, err := s.freshQuote(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	price := quote.Price
	if model.RequiresPrice(req.OrderType) {
		price = *req.Price
	}
	requiredMargin := risk.RequiredMargin(price, req.Quantity)
	commission := risk.Commission(price, req.Quantity)
	now := s.now().UTC()

	var result *ExecutionResult
	var earlier *model.Order
	err = s.inTx(ctx, func(r txRepos) error {
		profile, err := lockProfile(ctx, r, userID)
		if err != nil {
			return err
		}

		// A concurrent submission with the same key may have committed since
		// the first lookup; under the profile lock the answer is final.
		if req.ClientOrderID != "" {
			earlier, err = r.orders.FindByClientOrderID(ctx, userID, req.ClientOrderID)
			if err != nil {
				return fmt.Errorf("lookup client order id: %w", err)
			}
			if earlier != nil {
				return nil
			}
		}

		if !profile.IsActive() {
			return withDetail(ErrAccountInactive, fmt.Sprintf("account is %s", profile.AccountStatus))
		}
		if profile.FreeMargin.LessThan(requiredMargin) {
			return withDetail(ErrInsufficientMargin, fmt.Sprintf(
				"insufficient free margin: required %s, available %s",
				requiredMargin.StringFixed(2), profile.FreeMargin.StringFixed(2),
			))
		}

		side := model.PositionSideFor(req.Side)
		existing, err := r.positions.FindOpen(ctx, userID, req.Symbol, side)
		if err != nil {
			return fmt.Errorf("lookup open position: %w", err)
		}
		if existing != nil {
			return ErrDuplicatePosition
		}

		position := &model.Position{
			UserID:           userID,
			Symbol:           req.Symbol,
			Side:             side,
			Quantity:         req.Quantity,
			OriginalQuantity: req.Quantity,
			EntryPrice:       price,
			CurrentPrice:     price,
			UnrealizedPnL:    decimal.Zero,
			RealizedPnL:      decimal.Zero,
			MarginUsed:       requiredMargin,
			StopLoss:         req.StopLoss,
			TakeProfit:       req.TakeProfit,
			OpenedAt:         now,
			UpdatedAt:        now,
		}
		if err := r.positions.Create(ctx, position); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicatePosition
			}
			return fmt.Errorf("create position: %w", err)
		}

		order := &model.Order{
			UserID:           userID,
			ClientOrderID:    optionalString(req.ClientOrderID),
			PositionID:       &position.ID,
			Symbol:           req.Symbol,
			OrderType:        req.OrderType,
			Side:             req.Side,
			Quantity:         req.Quantity,
			Price:            req.Price,
			StopLoss:         req.StopLoss,
			TakeProfit:       req.TakeProfit,
			Status:           model.OrderStatusFilled,
			FilledQuantity:   req.Quantity,
			AverageFillPrice: price,
			Commission:       commission,
			ExecutedAt:       &now,
		}
		if err := r.orders.Create(ctx, order); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Same client order id committed by a concurrent request.
				return ErrConcurrentUpdate
			}
			return fmt.Errorf("create order: %w", err)
		}

		profile.MarginUsed = profile.MarginUsed.Add(requiredMargin)
		profile.FreeMargin = profile.FreeMargin.Sub(requiredMargin)
		if err := saveProfile(ctx, r, profile); err != nil {
			return err
		}

		if err := r.trades.Append(ctx, &model.TradeHistory{
			UserID:     userID,
			OrderID:    order.ID,
			PositionID: position.ID,
			Symbol:     req.Symbol,
			Side:       req.Side,
			Quantity:   req.Quantity,
			Price:      price,
			Commission: commission,
			PnL:        decimal.Zero,
			ExecutedAt: now,
		}); err != nil {
			return fmt.Errorf("append trade history: %w", err)
		}

		result = &ExecutionResult{
			Order:          *order,
			Position:       position,
			ExecutionPrice: price,
			RequiredMargin: requiredMargin,
			Commission:     commission,
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("Order execution failed")
		return nil, classify(err)
	}
	if earlier != nil {
		log.WithField("order_id", earlier.ID).Info("Replaying order committed by a concurrent submission")
		replayed, err := s.replay(ctx, earlier)
		if err != nil {
			return nil, classify(err)
		}
		return replayed, nil
	}

	log.WithFields(map[string]interface{}{
		"order_id":    result.Order.ID,
		"position_id": result.Position.ID,
		"price":       price.String(),
		"margin":      requiredMargin.String(),
	}).Info("Order filled")

	s.pub.Publish(marketdata.Event{Type: marketdata.EventPositionOpened, UserID: userID, Data: result.Position})
	return result, nil
}

// Replay returns the stored result of an earlier submission with the same
// client order id, or nil when there is none.
func (s *Service) Replay(ctx context.Context, userID, clientOrderID string) (*ExecutionResult, error) {
	existing, err := s.orders.FindByClientOrderID(ctx, userID, strings.TrimSpace(clientOrderID))
	if err != nil {
		return nil, fmt.Errorf("lookup client order id: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	return s.replay(ctx, existing)
}

func (s *Service) replay(ctx context.Context, order *model.Order) (*ExecutionResult, error) {
	result := &ExecutionResult{
		Order:          *order,
		ExecutionPrice: order.AverageFillPrice,
		RequiredMargin: risk.RequiredMargin(order.AverageFillPrice, order.FilledQuantity),
		Commission:     order.Commission,
		Replayed:       true,
	}
	if order.PositionID != nil {
		position, err := s.positions.FindByID(ctx, *order.PositionID)
		if err != nil {
			return nil, fmt.Errorf("load replayed position: %w", err)
		}
		result.Position = position
	}
	return result, nil
}

// classify passes classified errors through and wraps the rest as internal.
func classify(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
