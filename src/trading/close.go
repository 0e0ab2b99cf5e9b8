package trading

import (
	"context"
	"fmt"

	"cfdpaper/src/marketdata"
	"cfdpaper/src/model"
	"cfdpaper/src/risk"

	"github.com/shopspring/decimal"
)

// CloseResult is the outcome of a full or partial close.
type CloseResult struct {
	Order             model.Order     `json:"order"`
	Position          *model.Position `json:"position"`
	CloseQuantity     decimal.Decimal `json:"close_quantity"`
	ClosePrice        decimal.Decimal `json:"close_price"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	Commission        decimal.Decimal `json:"commission"`
	MarginReleased    decimal.Decimal `json:"margin_released"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	FullClose         bool            `json:"full_close"`
}

// ClosePosition realizes P&L on all or part of a position and releases the
// proportional margin.
func (s *Service) ClosePosition(
	ctx context.Context,
	userID string,
	req CloseRequest,
) (*CloseResult, error) {
	log := s.log.WithFields(map[string]interface{}{
		"op":          "ClosePosition",
		"user_id":     userID,
		"position_id": req.PositionID,
	})

	position, err := s.positions.FindByID(ctx, req.PositionID)
	if err != nil {
		return nil, classify(fmt.Errorf("load position: %w", err))
	}
	if position == nil || position.UserID != userID {
		return nil, ErrPositionNotFound
	}
	if _, err := resolveCloseQuantity(req.CloseQuantity, position.Quantity); err != nil {
		return nil, err
	}

	var closePrice decimal.Decimal
	if req.ClosePrice != nil {
		if !req.ClosePrice.IsPositive() {
			return nil, withDetail(ErrInvalidOrder, "close_price must be positive")
		}
		closePrice = *req.ClosePrice
	} else {
		quote, err := s.freshQuote(ctx, position.Symbol)
		if err != nil {
			return nil, classify(err)
		}
		closePrice = quote.Price
	}

	now := s.now().UTC()

	var result *CloseResult
	err = s.inTx(ctx, func(r txRepos) error {
		profile, err := lockProfile(ctx, r, userID)
		if err != nil {
			return err
		}

		// Re-read under lock; a concurrent close may have reduced or removed it.
		locked, err := r.positions.FindByIDForUpdate(ctx, req.PositionID)
		if err != nil {
			return fmt.Errorf("lock position: %w", err)
		}
		if locked == nil || locked.UserID != userID {
			return ErrPositionNotFound
		}

		quantityBefore := locked.Quantity
		closeQty, err := resolveCloseQuantity(req.CloseQuantity, quantityBefore)
		if err != nil {
			return err
		}
		fullClose := closeQty.Equal(quantityBefore)

		realized := risk.PnL(locked.Side, locked.EntryPrice, closePrice, closeQty)
		commission := risk.Commission(closePrice, closeQty)
		released := risk.MarginReleased(locked.MarginUsed, closeQty, quantityBefore)

		order := &model.Order{
			UserID:           userID,
			PositionID:       &locked.ID,
			Symbol:           locked.Symbol,
			OrderType:        model.OrderTypeMarket,
			Side:             model.ClosingOrderSide(locked.Side),
			Quantity:         closeQty,
			Price:            req.ClosePrice,
			Status:           model.OrderStatusFilled,
			FilledQuantity:   closeQty,
			AverageFillPrice: closePrice,
			Commission:       commission,
			ExecutedAt:       &now,
		}
		if err := r.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create closing order: %w", err)
		}

		if err := r.trades.Append(ctx, &model.TradeHistory{
			UserID:     userID,
			OrderID:    order.ID,
			PositionID: locked.ID,
			Symbol:     locked.Symbol,
			Side:       order.Side,
			Quantity:   closeQty,
			Price:      closePrice,
			Commission: commission,
			PnL:        realized,
			ExecutedAt: now,
		}); err != nil {
			return fmt.Errorf("append trade history: %w", err)
		}

		var remaining *model.Position
		if fullClose {
			if err := r.positions.Delete(ctx, locked.ID); err != nil {
				return fmt.Errorf("delete position: %w", err)
			}
		} else {
			locked.Quantity = quantityBefore.Sub(closeQty)
			locked.RealizedPnL = locked.RealizedPnL.Add(realized)
			locked.MarginUsed = locked.MarginUsed.Sub(released)
			locked.CurrentPrice = closePrice
			locked.UnrealizedPnL = risk.PnL(locked.Side, locked.EntryPrice, closePrice, locked.Quantity)
			locked.UpdatedAt = now
			if err := r.positions.SaveReduced(ctx, locked); err != nil {
				return fmt.Errorf("reduce position: %w", err)
			}
			remaining = locked
		}

		net := realized.Sub(commission)
		profile.Balance = profile.Balance.Add(net)
		profile.MarginUsed = profile.MarginUsed.Sub(released)
		profile.FreeMargin = profile.FreeMargin.Add(released).Add(net)

		open, err := r.positions.ListOpen(ctx, positionsOf(userID))
		if err != nil {
			return fmt.Errorf("list remaining positions: %w", err)
		}
		profile.Equity = profile.Balance.Add(sumUnrealized(open))

		if err := saveProfile(ctx, r, profile); err != nil {
			return err
		}

		result = &CloseResult{
			Order:             *order,
			Position:          remaining,
			CloseQuantity:     closeQty,
			ClosePrice:        closePrice,
			RealizedPnL:       realized,
			Commission:        commission,
			MarginReleased:    released,
			RemainingQuantity: quantityBefore.Sub(closeQty),
			FullClose:         fullClose,
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("Close position failed")
		return nil, classify(err)
	}

	log.WithFields(map[string]interface{}{
		"close_qty":    result.CloseQuantity.String(),
		"close_price":  result.ClosePrice.String(),
		"realized_pnl": result.RealizedPnL.String(),
		"full_close":   result.FullClose,
	}).Info("Position closed")

	s.pub.Publish(marketdata.Event{Type: marketdata.EventPositionClosed, UserID: userID, Data: result})
	return result, nil
}

// resolveCloseQuantity defaults to the whole position and rejects quantities
// outside (0, open].
func resolveCloseQuantity(requested *decimal.Decimal, open decimal.Decimal) (decimal.Decimal, error) {
	if requested == nil {
		return open, nil
	}
	if !requested.IsPositive() {
		return decimal.Zero, withDetail(ErrInvalidCloseQuantity, "close_quantity must be greater than 0")
	}
	if requested.GreaterThan(open) {
		return decimal.Zero, withDetail(ErrInvalidCloseQuantity, fmt.Sprintf(
			"close_quantity %s exceeds position quantity %s", requested.String(), open.String(),
		))
	}
	return *requested, nil
}

func sumUnrealized(positions []model.Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.UnrealizedPnL)
	}
	return total
}
