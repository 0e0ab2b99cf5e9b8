package repository

import (
	"context"

	"cfdpaper/src/database"
	"cfdpaper/src/model"

	"gorm.io/gorm"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{db: database.MainDB}
}

func (r *AuditLogRepository) WithDB(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(
	ctx context.Context,
	entry *model.AuditLog,
) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditLogRepository) ListByUser(
	ctx context.Context,
	userID string,
) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
