package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"parent-messenger/internal/models"
)

// OpenSQLite opens an existing SQLite dispatch log read-only.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file:"+path+"?mode=ro"), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

// CopyLog copies every dispatch log table from src into dst, for moving a
// local SQLite log to PostgreSQL. dst must already be migrated.
func CopyLog(src, dst *gorm.DB, log *zap.Logger) error {
	var batches []models.Batch
	if err := copyTable(src, dst, log, "batches", &batches); err != nil {
		return err
	}
	var logs []models.DispatchLog
	if err := copyTable(src, dst, log, "dispatch_logs", &logs); err != nil {
		return err
	}
	var media []models.Media
	if err := copyTable(src, dst, log, "media", &media); err != nil {
		return err
	}

	if dst.Dialector.Name() == "postgres" {
		SyncSequences(dst, log)
	}
	return nil
}

// copyTable reads all rows of one table into rows (a pointer to a slice)
// and writes them to dst in a single transaction.
func copyTable(src, dst *gorm.DB, log *zap.Logger, table string, rows interface{}) error {
	log.Info("Migrating table", zap.String("table", table))

	res := src.Find(rows)
	if res.Error != nil {
		return fmt.Errorf("read %s: %w", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}

	err := dst.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	log.Info("Migrated table", zap.String("table", table), zap.Int64("rows", res.RowsAffected))
	return nil
}

// SyncSequences moves PostgreSQL id sequences past rows inserted with
// explicit ids.
func SyncSequences(db *gorm.DB, log *zap.Logger) {
	for _, table := range []string{"dispatch_logs", "media"} {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			log.Warn("Error syncing sequence", zap.String("table", table), zap.Error(err))
		} else {
			log.Info("Synced sequence", zap.String("table", table))
		}
	}
}
