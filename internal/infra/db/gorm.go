package db

import (
	"fmt"

	"cartsync/internal/config"
	"cartsync/internal/domain/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	// DATABASE_URL があれば最優先で使う
	if cfg.DatabaseURL != "" {
		return OpenPostgres(cfg.DatabaseURL, gcfg)
	}

	return OpenSQLite(cfg.DBPath)
}

// OpenPostgres は pgx の database/sql ドライバ経由で開く。
func OpenPostgres(url string, gcfg *gorm.Config) (*gorm.DB, error) {
	pcfg, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if _, ok := pcfg.RuntimeParams["application_name"]; !ok {
		pcfg.RuntimeParams["application_name"] = "cartsync"
	}

	sqlDB := stdlib.OpenDB(*pcfg)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gcfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return gdb, nil
}

// OpenSQLite は端末内のファイル（":memory:"も可）を開く。
func OpenSQLite(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// 書き込みは1本だけ
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if path != ":memory:" {
		if err := gdb.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	if err := gdb.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	return gdb, nil
}

// Migrate はカート写し用のテーブルを作る。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&model.CartState{}, &model.CartLine{})
}
