package repository

import (
	"context"
	"errors"
	"time"

	"cfdpaper/src/database"
	"cfdpaper/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository handles reads and versioned writes of trading profiles.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository instance using the main read/write database.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *ProfileRepository) WithDB(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a new profile.
func (r *ProfileRepository) Create(
	ctx context.Context,
	profile *model.Profile,
) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetByUserID returns (nil, nil) when the user has no profile.
func (r *ProfileRepository) GetByUserID(
	ctx context.Context,
	userID string,
) (*model.Profile, error) {
	return r.getByUserID(ctx, userID, false)
}

// GetByUserIDForUpdate reads the profile and locks its row for the rest of the
// surrounding transaction. Drivers without row locks ignore the clause.
func (r *ProfileRepository) GetByUserIDForUpdate(
	ctx context.Context,
	userID string,
) (*model.Profile, error) {
	return r.getByUserID(ctx, userID, true)
}

func (r *ProfileRepository) getByUserID(
	ctx context.Context,
	userID string,
	lock bool,
) (*model.Profile, error) {
	query := r.db.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var profile model.Profile
	if err := query.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":    "ProfileRepository",
			"op":      "GetByUserID",
			"user_id": userID,
			"lock":    lock,
		}).WithError(err).Error("Failed to fetch profile")
		return nil, err
	}
	return &profile, nil
}

// SaveVersioned writes the balance, margin and status columns only if the stored
// version still matches profile.Version, then bumps the version. It returns
// ErrStaleVersion when another writer got there first.
func (r *ProfileRepository) SaveVersioned(
	ctx context.Context,
	profile *model.Profile,
) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("id = ? AND version = ?", profile.ID, profile.Version).
		Updates(map[string]interface{}{
			"balance":        profile.Balance,
			"margin_used":    profile.MarginUsed,
			"free_margin":    profile.FreeMargin,
			"equity":         profile.Equity,
			"account_status": profile.AccountStatus,
			"version":        profile.Version + 1,
			"updated_at":     now,
		})
	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "ProfileRepository",
			"op":         "SaveVersioned",
			"profile_id": profile.ID,
		}).WithError(result.Error).Error("Failed to update profile")
		return result.Error
	}
	if result.RowsAffected == 0 {
		logger.WithFields(map[string]interface{}{
			"repo":       "ProfileRepository",
			"op":         "SaveVersioned",
			"profile_id": profile.ID,
			"version":    profile.Version,
		}).Warn("Profile version conflict")
		return ErrStaleVersion
	}

	profile.Version++
	profile.UpdatedAt = now
	return nil
}
