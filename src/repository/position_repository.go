package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"cfdpaper/src/database"
	"cfdpaper/src/model"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PositionRepository handles open positions.
type PositionRepository struct {
	db *gorm.DB
}

// PositionFilter narrows ListOpen. Empty fields match everything.
type PositionFilter struct {
	UserID  string
	Symbols []string
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{
		db: database.MainDB,
	}
}

// NewPositionReadRepository serves listings from the read replica.
func NewPositionReadRepository() *PositionRepository {
	return &PositionRepository{
		db: database.Read(),
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

func (r *PositionRepository) Create(
	ctx context.Context,
	position *model.Position,
) error {
	if err := r.db.WithContext(ctx).Create(position).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "Create",
			"user":   position.UserID,
			"symbol": position.Symbol,
			"side":   position.Side,
		}).WithError(err).Error("Failed to create position")
		return err
	}
	return nil
}

// FindByIDForUpdate locks the position row for the surrounding transaction.
// Returns (nil, nil) if the position does not exist.
func (r *PositionRepository) FindByIDForUpdate(
	ctx context.Context,
	id uint,
) (*model.Position, error) {
	var position model.Position
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// FindByID returns (nil, nil) if the position does not exist.
func (r *PositionRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.Position, error) {
	var position model.Position
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// FindOpen returns the open position for (user, symbol, side) or (nil, nil).
func (r *PositionRepository) FindOpen(
	ctx context.Context,
	userID string,
	symbol string,
	side string,
) (*model.Position, error) {
	var position model.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND side = ?", userID, symbol, side).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// ListOpen returns open positions ordered by id.
func (r *PositionRepository) ListOpen(
	ctx context.Context,
	filter PositionFilter,
) ([]model.Position, error) {
	query := r.db.WithContext(ctx)
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if len(filter.Symbols) > 0 {
		symbols := make([]string, len(filter.Symbols))
		for i, symbol := range filter.Symbols {
			symbols[i] = strings.ToUpper(strings.TrimSpace(symbol))
		}
		query = query.Where("symbol IN ?", symbols)
	}

	var positions []model.Position
	if err := query.Order("id ASC").Find(&positions).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "ListOpen",
			"user_id": filter.UserID,
			"symbols": filter.Symbols,
		}).WithError(err).Error("Failed to list positions")
		return nil, err
	}
	return positions, nil
}

// UpdateMark writes the mark-to-market price and unrealized P&L.
func (r *PositionRepository) UpdateMark(
	ctx context.Context,
	id uint,
	currentPrice decimal.Decimal,
	unrealizedPnL decimal.Decimal,
	at time.Time,
) error {
	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_price":  currentPrice,
			"unrealized_pnl": unrealizedPnL,
			"updated_at":     at,
		}).Error
}

// SaveReduced persists a partially closed position.
func (r *PositionRepository) SaveReduced(
	ctx context.Context,
	position *model.Position,
) error {
	return r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", position.ID).
		Updates(map[string]interface{}{
			"quantity":       position.Quantity,
			"realized_pnl":   position.RealizedPnL,
			"margin_used":    position.MarginUsed,
			"current_price":  position.CurrentPrice,
			"unrealized_pnl": position.UnrealizedPnL,
			"updated_at":     position.UpdatedAt,
		}).Error
}

// Delete removes a fully closed position.
func (r *PositionRepository) Delete(
	ctx context.Context,
	id uint,
) error {
	return r.db.WithContext(ctx).Delete(&model.Position{}, id).Error
}
