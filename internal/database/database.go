package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"kbtrial/internal/config"
	"kbtrial/internal/logging"
	"kbtrial/internal/models"
)

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logging.NewGormZapLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// A single connection keeps ":memory:" databases alive and shared.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("Database connection established successfully.", zap.String("driver", cfg.Driver))
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Database migrations completed successfully.")
	return db, nil
}

// Migrate creates or updates the tables for sessions and trial records.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Session{}, &models.TrialRecord{}); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	return nil
}
