package database

import (
	"fmt"

	"cfdpaper/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReadOnlyDB serves list/search endpoints. The database user for this connection
// should have SELECT-only permissions. It falls back to MainDB when no replica
// URL is configured.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB initializes the read-only database connection.
// It does not run any migrations. InitMainDB must run first.
func InitReadOnlyDB() error {
	config := GetConfig()

	if config.DatabaseURLReadOnly == "" {
		if MainDB == nil {
			return fmt.Errorf("read-only database falls back to MainDB but MainDB is not initialized")
		}
		ReadOnlyDB = MainDB
		logrus.Info("[ReadOnlyDB] no replica configured, using MainDB")
		return nil
	}

	db, err := Open(config.Driver, config.DatabaseURLReadOnly, config.GormLogLevel)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	// The replica must already carry the schema.
	if !db.Migrator().HasTable(&model.Position{}) {
		return fmt.Errorf("read-only database is missing table %q", model.Position{}.TableName())
	}

	logrus.Info("[ReadOnlyDB] connected")

	ReadOnlyDB = db
	return nil
}

// Read returns ReadOnlyDB when initialized, else MainDB.
func Read() *gorm.DB {
	if ReadOnlyDB != nil {
		return ReadOnlyDB
	}
	return MainDB
}
