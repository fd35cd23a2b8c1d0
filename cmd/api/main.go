package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cartsync/internal/config"
	"cartsync/internal/domain/model"
	"cartsync/internal/server"

	"github.com/shopspring/decimal"
)

// 開発用の商品
func seedProducts() []model.Product {
	return []model.Product{
		{ID: "pho-bo", Name: "Phở bò", Price: decimal.NewFromInt(50000), ImagePath: "/images/pho-bo.jpg"},
		{ID: "banh-mi", Name: "Bánh mì", Price: decimal.NewFromInt(30000), ImagePath: "/images/banh-mi.jpg"},
		{ID: "com-tam", Name: "Cơm tấm", Price: decimal.NewFromInt(45000), ImagePath: "/images/com-tam.jpg"},
		{ID: "tra-da", Name: "Trà đá", Price: decimal.NewFromInt(5000)},
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.LoadServerFile(".env")
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := server.NewStub(ctx, cfg, seedProducts()...)
	if err != nil {
		logger.Error("build stub api", "error", err)
		os.Exit(1)
	}

	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	logger.Info("stub cart api listening", "addr", addr, "user", cfg.StubUserEmail)

	if err := server.Start(ctx, addr, s.Echo); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
