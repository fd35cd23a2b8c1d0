// Package cartsync はサーバー側カートのローカル写し（永続化つき）
package cartsync

import (
	"context"
	"fmt"
	"log/slog"

	"cartsync/internal/config"
	"cartsync/internal/domain/model"
	"cartsync/internal/infra/api"
	"cartsync/internal/infra/db"
	infraRepo "cartsync/internal/infra/repository"
	"cartsync/internal/usecase"

	"gorm.io/gorm"
)

type (
	Config            = config.Config
	TokenSource       = api.TokenSource
	StaticTokenSource = api.StaticToken
	Snapshot          = model.CartSnapshot
	LineItem          = model.LineItem
	Totals            = model.Totals
	View              = usecase.CartView
	CustomerInfo      = model.CustomerInfo
	OrderReceipt      = model.OrderReceipt
	CartError         = model.CartError
	ErrorKind         = model.ErrorKind
)

// ローカルDBつきのエンジン
type Cart struct {
	*usecase.CartEngine
	db *gorm.DB
}

// .env があれば読んでから環境変数を見る
func LoadConfig(envFile string) (Config, error) {
	return config.LoadFile(envFile)
}

func NewStaticToken(token string) *StaticTokenSource {
	return api.NewStaticToken(token)
}

// Open はローカルDBをつなぎ、保存済みのカートを戻して返す。
// サーバーとの突き合わせは Load で行う
func Open(ctx context.Context, cfg Config, tokens TokenSource, logger *slog.Logger) (*Cart, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect cart store: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		closeDB(gdb)
		return nil, fmt.Errorf("migrate cart store: %w", err)
	}

	client, err := api.New(api.Config{
		BaseURL:     cfg.APIBaseURL,
		Lang:        cfg.Lang,
		Tokens:      tokens,
		CallTimeout: cfg.MutationTimeout,
		Logger:      logger,
	})
	if err != nil {
		closeDB(gdb)
		return nil, err
	}

	engine := usecase.NewCartEngine(client, client, client, infraRepo.NewCartStateGormRepository(gdb), usecase.EngineOptions{
		Owner:           cfg.Owner,
		Debounce:        cfg.Debounce,
		MutationTimeout: cfg.MutationTimeout,
		Enrich: usecase.EnricherOptions{
			MaxAttempts:    cfg.EnrichMaxAttempts,
			RetryDelay:     cfg.EnrichRetryDelay,
			AttemptTimeout: cfg.MutationTimeout,
			Concurrency:    cfg.EnrichConcurrency,
			RPS:            cfg.CatalogRPS,
		},
		Logger: logger,
	})

	if _, err := engine.Restore(ctx); err != nil {
		engine.Close()
		closeDB(gdb)
		return nil, err
	}
	return &Cart{CartEngine: engine, db: gdb}, nil
}

// タイマーと商品取得を止めてからDBを閉じる
func (c *Cart) Close() error {
	c.CartEngine.Close()
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
