package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parent-messenger/internal/config"
	"parent-messenger/internal/models"
)

// Open connects to the dispatch log database selected by DB_DRIVER and
// migrates it. It returns nil, nil when the log is disabled.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "":
		return nil, nil
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	case "postgres":
		dialector = postgres.Open(cfg.DBDSN)
	default:
		return nil, &config.Error{Key: "DB_DRIVER", Reason: fmt.Sprintf("unknown driver %q", cfg.DBDriver)}
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}
	log.Info("Connected to dispatch log", zap.String("driver", cfg.DBDriver))

	if err := migrate(db); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return db, nil
}

// migrate is swapped in tests.
var migrate = Migrate

// Migrate creates or updates the dispatch log tables.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Batch{},
		&models.DispatchLog{},
		&models.Media{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration: %w", err)
	}
	return nil
}
