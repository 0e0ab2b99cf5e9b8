package repository

import (
	"context"
	"errors"
	"time"

	"cfdpaper/src/database"
	"cfdpaper/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OrderRepository handles read/write operations for orders.
type OrderRepository struct {
	db *gorm.DB
}

// OrderSearchOptions filters order listings. Zero Limit means no limit.
type OrderSearchOptions struct {
	UserID        string
	Symbol        *string
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// NewOrderRepository creates a new repository instance using the main read/write database.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		db: database.MainDB,
	}
}

// NewOrderReadRepository serves searches from the read replica.
func NewOrderReadRepository() *OrderRepository {
	return &OrderRepository{
		db: database.Read(),
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order.
// The given order will be updated with the generated ID and timestamps.
func (r *OrderRepository) Create(
	ctx context.Context,
	order *model.Order,
) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "OrderRepository",
		"op":     "Create",
		"user":   order.UserID,
		"symbol": order.Symbol,
		"side":   order.Side,
		"qty":    order.Quantity.String(),
	}).Debug("Creating new order")

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create order")
		return err
	}
	return nil
}

// FindByClientOrderID returns (nil, nil) if no order carries the idempotency key.
func (r *OrderRepository) FindByClientOrderID(
	ctx context.Context,
	userID string,
	clientOrderID string,
) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND client_order_id = ?", userID, clientOrderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// Search lists orders of a user, newest first.
func (r *OrderRepository) Search(
	ctx context.Context,
	options OrderSearchOptions,
) ([]model.Order, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", options.UserID)

	if options.Symbol != nil {
		query = query.Where("symbol = ?", *options.Symbol)
	}
	if options.Status != nil {
		query = query.Where("status = ?", *options.Status)
	}
	if options.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *options.CreatedAfter)
	}
	if options.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *options.CreatedBefore)
	}

	query = query.Order("created_at DESC, id DESC")
	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var orders []model.Order
	if err := query.Find(&orders).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "OrderRepository",
			"op":      "Search",
			"user_id": options.UserID,
		}).WithError(err).Error("Failed to search orders")
		return nil, err
	}
	return orders, nil
}
