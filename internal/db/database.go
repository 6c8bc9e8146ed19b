// Package db provides the GORM-backed record store for Sitesmith.
package db

import (
	"fmt"
	"time"

	"sitesmith/internal/logging"
	"sitesmith/pkg/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM database instance.
type Database struct {
	DB *gorm.DB
}

// New opens the record store. A Postgres DSN selects Postgres; an empty DSN
// falls back to the embedded pure-Go sqlite driver for development.
func New(databaseURL, sqlitePath string) (*Database, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	if databaseURL != "" {
		db, err = gorm.Open(postgres.Open(databaseURL), gormConfig)
	} else {
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logging.S().Infow("database connected", "driver", db.Dialector.Name())
	return &Database{DB: db}, nil
}

// Migrate runs schema migrations for all models.
func (d *Database) Migrate() error {
	err := d.DB.AutoMigrate(
		&models.User{},
		&models.DraftProject{},
		&models.DraftFile{},
		&models.GenerationRun{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
