package db

import (
	"fmt"

	"memosync/internal/auth"
	"memosync/internal/remote/gormstore"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&gormstore.Row{},
		&auth.User{},
	); err != nil {
		return err
	}

	// One record per natural key. memo ids are globally unique, settings are
	// one record per user.
	stmts := []string{
		`create unique index if not exists uq_records_memo_id on records ((data->>'memo_id')) where collection = 'memos';`,
		`create unique index if not exists uq_records_settings_user on records ((data->>'user')) where collection = 'user_settings';`,
		`create index if not exists idx_records_collection_user on records(collection, (data->>'user'));`,
		`create index if not exists idx_records_data on records using gin (data jsonb_path_ops);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
