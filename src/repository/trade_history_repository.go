package repository

import (
	"context"

	"cfdpaper/src/database"
	"cfdpaper/src/model"

	"gorm.io/gorm"
)

// TradeHistoryRepository appends and lists trade history rows. Rows are never updated.
type TradeHistoryRepository struct {
	db *gorm.DB
}

func NewTradeHistoryRepository() *TradeHistoryRepository {
	return &TradeHistoryRepository{db: database.MainDB}
}

func NewTradeHistoryReadRepository() *TradeHistoryRepository {
	return &TradeHistoryRepository{db: database.Read()}
}

func (r *TradeHistoryRepository) WithDB(db *gorm.DB) *TradeHistoryRepository {
	return &TradeHistoryRepository{db: db}
}

func (r *TradeHistoryRepository) Append(
	ctx context.Context,
	entry *model.TradeHistory,
) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByUser returns the newest entries first.
func (r *TradeHistoryRepository) ListByUser(
	ctx context.Context,
	userID string,
	limit int,
	offset int,
) ([]model.TradeHistory, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("executed_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var entries []model.TradeHistory
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
