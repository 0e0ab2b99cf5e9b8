package repository

import (
	"context"
	"errors"
	"strings"

	"cfdpaper/src/database"
	"cfdpaper/src/model"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarketDataRepository reads and refreshes the market_data_cache table.
type MarketDataRepository struct {
	db *gorm.DB
}

func NewMarketDataRepository() *MarketDataRepository {
	return &MarketDataRepository{db: database.MainDB}
}

func (r *MarketDataRepository) WithDB(db *gorm.DB) *MarketDataRepository {
	return &MarketDataRepository{db: db}
}

// GetQuote returns (nil, nil) when the symbol has never been cached.
func (r *MarketDataRepository) GetQuote(
	ctx context.Context,
	symbol string,
) (*model.MarketQuote, error) {
	var quote model.MarketQuote
	err := r.db.WithContext(ctx).
		Where("symbol = ?", strings.ToUpper(symbol)).
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quote, nil
}

// GetQuotes returns cached quotes keyed by symbol; missing symbols are absent.
func (r *MarketDataRepository) GetQuotes(
	ctx context.Context,
	symbols []string,
) (map[string]model.MarketQuote, error) {
	out := make(map[string]model.MarketQuote, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	var quotes []model.MarketQuote
	if err := r.db.WithContext(ctx).Where("symbol IN ?", symbols).Find(&quotes).Error; err != nil {
		return nil, err
	}
	for _, q := range quotes {
		out[q.Symbol] = q
	}
	return out, nil
}

// Upsert inserts quotes or overwrites the existing row per symbol.
func (r *MarketDataRepository) Upsert(
	ctx context.Context,
	quotes []model.MarketQuote,
) error {
	if len(quotes) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price", "bid", "ask", "high", "low", "open", "volume", "source", "updated_at",
			}),
		}).
		Create(&quotes).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "MarketDataRepository",
			"op":    "Upsert",
			"count": len(quotes),
		}).WithError(err).Error("Failed to upsert quotes")
		return err
	}
	return nil
}
