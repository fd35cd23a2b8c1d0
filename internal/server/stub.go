package server

import (
	"context"
	"fmt"
	"time"

	"cartsync/internal/config"
	"cartsync/internal/domain/model"
	"cartsync/internal/handler"
	"cartsync/internal/infra/memory"
	"cartsync/internal/middleware"
	auth "cartsync/internal/usecase/auth_usecase"
	stub "cartsync/internal/usecase/stub_usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// Stub は開発・結合テスト用のカートAPI一式
type Stub struct {
	Echo    *echo.Echo
	Backend *stub.Backend
	Faults  *middleware.Faults
	Login   *auth.LoginUsecase
}

// NewStub はユーザーを1人登録し、商品を入れた状態で組み立てる
func NewStub(ctx context.Context, cfg config.ServerConfig, products ...model.Product) (*Stub, error) {
	idGen := &uuidGenerator{}
	clock := &realClock{}

	//ユーザー（bcrypt）
	users := memory.NewUserStore()
	register := auth.NewRegisterUserUsecase(users, auth.NewBcryptPasswordHasher(0), idGen, clock)
	if _, err := register.Execute(ctx, auth.RegisterUserInput{
		Email:    cfg.StubUserEmail,
		Password: cfg.StubUserPassword,
	}); err != nil {
		return nil, fmt.Errorf("register stub user: %w", err)
	}
	login := auth.NewLoginUsecase(users, auth.NewBcryptPasswordVerifier(), auth.NewJWTIssuer(cfg.JWTSecret, cfg.AccessTTL), clock)

	//カート・商品・注文
	backend := stub.NewBackend(idGen)
	backend.SeedProducts(products...)
	backend.SetDenormalize(cfg.Denormalize)
	faults := middleware.NewFaults()

	e := New(cfg, Handlers{
		Auth:    handler.NewAuthHandler(login),
		Cart:    handler.NewCartHandler(backend),
		Product: handler.NewProductHandler(backend),
		Order:   handler.NewOrderHandler(backend),
	}, faults)

	return &Stub{Echo: e, Backend: backend, Faults: faults, Login: login}, nil
}
