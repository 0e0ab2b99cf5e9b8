package trading

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cfdpaper/src/marketdata"
	"cfdpaper/src/model"
	"cfdpaper/src/repository"
	"cfdpaper/src/risk"
	"cfdpaper/src/tp_sl"
)

// MarkResult summarizes a mark-to-market run.
type MarkResult struct {
	UpdatedCount     int      `json:"updated_count"`
	SkippedCount     int      `json:"skipped_count"`
	SymbolsUpdated   []string `json:"symbols_updated"`
	PositionsUpdated []uint   `json:"positions_updated"`
	SuspendedUsers   []string `json:"suspended_users"`
}

// MarkToMarket re-prices open positions in scope against fresh quotes, then
// runs the margin-call sweep for every user whose positions were touched.
// Positions without a fresh quote are skipped.
//
// The first listing only discovers users and symbols. Each user is then
// re-priced and swept in one transaction holding the profile lock, so a close
// committed in between is seen with its reduced quantity.
func (s *Service) MarkToMarket(ctx context.Context, scope Scope) (*MarkResult, error) {
	scope.Normalize()
	log := s.log.WithFields(map[string]interface{}{
		"op":      "MarkToMarket",
		"user_id": scope.UserID,
		"symbols": scope.Symbols,
	})

	candidates, err := s.positions.ListOpen(ctx, repository.PositionFilter{
		UserID:  scope.UserID,
		Symbols: scope.Symbols,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("list positions: %w", err))
	}

	result := &MarkResult{
		SymbolsUpdated:   []string{},
		PositionsUpdated: []uint{},
		SuspendedUsers:   []string{},
	}
	if len(candidates) == 0 {
		return result, nil
	}

	quotes, err := s.quotes.GetQuotes(ctx, distinctSymbols(candidates))
	if err != nil {
		return nil, classify(fmt.Errorf("load quotes: %w", err))
	}

	now := s.now().UTC()
	symbolsSeen := map[string]struct{}{}

	for _, userID := range distinctUsers(candidates) {
		run, err := s.markUser(ctx, userID, scope, quotes, now)
		if err != nil {
			return nil, classify(fmt.Errorf("mark positions of %s: %w", userID, err))
		}

		result.SkippedCount += run.skipped
		for _, p := range run.marked {
			result.UpdatedCount++
			result.PositionsUpdated = append(result.PositionsUpdated, p.ID)
			if _, ok := symbolsSeen[p.Symbol]; !ok {
				symbolsSeen[p.Symbol] = struct{}{}
				result.SymbolsUpdated = append(result.SymbolsUpdated, p.Symbol)
			}

			if hit := tp_sl.Check(p.Side, p.StopLoss, p.TakeProfit, p.CurrentPrice); hit != tp_sl.HitNone {
				log.WithFields(map[string]interface{}{
					"position_id": p.ID,
					"level":       string(hit),
					"price":       p.CurrentPrice.String(),
				}).Warn("Position crossed an advisory level")
			}
			s.pub.Publish(marketdata.Event{Type: marketdata.EventPositionMarked, UserID: p.UserID, Data: p})
		}

		if run.profileMissing && len(run.marked) > 0 {
			log.WithField("position_user", userID).Warn("Skipping margin call sweep, profile missing")
		}
		if run.suspended {
			result.SuspendedUsers = append(result.SuspendedUsers, userID)
			s.log.WithFields(map[string]interface{}{
				"user_id":     userID,
				"equity":      run.call.Equity.String(),
				"threshold":   run.call.Threshold.String(),
				"margin_call": true,
			}).Warn("Account suspended by margin call")
			s.pub.Publish(marketdata.Event{Type: marketdata.EventAccountSuspend, UserID: userID, Data: map[string]string{
				"equity":    run.call.Equity.String(),
				"threshold": run.call.Threshold.String(),
			}})
		}
	}

	sort.Strings(result.SymbolsUpdated)

	log.WithFields(map[string]interface{}{
		"updated":   result.UpdatedCount,
		"skipped":   result.SkippedCount,
		"suspended": len(result.SuspendedUsers),
	}).Info("Mark-to-market completed")

	return result, nil
}

type userMark struct {
	marked         []model.Position
	skipped        int
	suspended      bool
	profileMissing bool
	call           risk.MarginCall
}

// markUser re-prices one user's positions in scope and sweeps the account.
// Every position writer takes the profile lock first, so positions read
// after it cannot change until commit.
func (s *Service) markUser(
	ctx context.Context,
	userID string,
	scope Scope,
	quotes map[string]model.MarketQuote,
	now time.Time,
) (*userMark, error) {
	run := &userMark{}

	err := s.inTx(ctx, func(r txRepos) error {
		run.marked = nil
		run.skipped = 0
		run.suspended = false

		profile, err := r.profiles.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		run.profileMissing = profile == nil

		open, err := r.positions.ListOpen(ctx, positionsOf(userID))
		if err != nil {
			return fmt.Errorf("list positions: %w", err)
		}

		for i := range open {
			p := &open[i]
			if !scope.includes(p.Symbol) {
				continue
			}
			quote, ok := quotes[p.Symbol]
			if !ok || !quote.Price.IsPositive() || quote.IsStale(now, s.cfg.QuoteMaxAge) {
				run.skipped++
				continue
			}

			upnl := risk.PnL(p.Side, p.EntryPrice, quote.Price, p.Quantity)
			if err := r.positions.UpdateMark(ctx, p.ID, quote.Price, upnl, now); err != nil {
				return fmt.Errorf("update position %d: %w", p.ID, err)
			}
			p.CurrentPrice = quote.Price
			p.UnrealizedPnL = upnl
			p.UpdatedAt = now
			run.marked = append(run.marked, *p)
		}

		if profile == nil || len(run.marked) == 0 {
			return nil
		}

		unrealized := sumUnrealized(open)
		run.call = risk.EvaluateMarginCall(profile.Balance, profile.MarginUsed, unrealized)
		profile.Equity = profile.Balance.Add(unrealized)

		if run.call.Triggered && profile.AccountStatus != model.AccountStatusSuspended {
			profile.AccountStatus = model.AccountStatusSuspended
			run.suspended = true

			if err := r.audits.Create(ctx, &model.AuditLog{
				UserID: userID,
				Action: model.AuditActionMarginCallSuspension,
				Details: map[string]interface{}{
					"equity":      run.call.Equity.String(),
					"margin_used": profile.MarginUsed.String(),
					"threshold":   run.call.Threshold.String(),
					"timestamp":   now.Format(time.RFC3339),
				},
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("append audit log: %w", err)
			}
		}

		return saveProfile(ctx, r, profile)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func positionsOf(userID string) repository.PositionFilter {
	return repository.PositionFilter{UserID: userID}
}

func distinctUsers(positions []model.Position) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range positions {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		out = append(out, p.UserID)
	}
	sort.Strings(out)
	return out
}

func distinctSymbols(positions []model.Position) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range positions {
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		out = append(out, p.Symbol)
	}
	return out
}
