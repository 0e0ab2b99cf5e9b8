package migrations

import (
	"fmt"

	"cfdpaper/src/risk"

	"gorm.io/gorm"
)

// uppercaseQuoteSymbols normalizes cached quote symbols so lookups by the
// uppercased order symbol always hit.
func uppercaseQuoteSymbols(db *gorm.DB) error {
	if !db.Migrator().HasTable("market_data_cache") {
		return nil
	}
	if err := db.Exec(`UPDATE market_data_cache SET symbol = UPPER(symbol) WHERE symbol <> UPPER(symbol)`).Error; err != nil {
		return fmt.Errorf("uppercase market_data_cache.symbol: %w", err)
	}
	return nil
}

// backfillPositionMargin fills margin_used and original_quantity for positions
// opened before those columns existed.
func backfillPositionMargin(db *gorm.DB) error {
	if !db.Migrator().HasTable("positions") {
		return nil
	}
	if err := db.Exec(
		`UPDATE positions SET margin_used = entry_price * quantity * ? WHERE margin_used = 0`,
		risk.MarginRate,
	).Error; err != nil {
		return fmt.Errorf("backfill positions.margin_used: %w", err)
	}
	if err := db.Exec(`UPDATE positions SET original_quantity = quantity WHERE original_quantity = 0`).Error; err != nil {
		return fmt.Errorf("backfill positions.original_quantity: %w", err)
	}
	return nil
}

// backfillProfileFreeMargin derives free_margin and equity for funded profiles
// that never had them set.
func backfillProfileFreeMargin(db *gorm.DB) error {
	if !db.Migrator().HasTable("profiles") {
		return nil
	}
	if err := db.Exec(
		`UPDATE profiles SET free_margin = balance - margin_used, equity = balance WHERE free_margin = 0 AND equity = 0 AND balance <> 0`,
	).Error; err != nil {
		return fmt.Errorf("backfill profiles.free_margin: %w", err)
	}
	return nil
}
