package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cartsync/internal/config"
	"cartsync/internal/handler"
	"cartsync/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Cart    *handler.CartHandler
	Product *handler.ProductHandler
	Order   *handler.OrderHandler
}

// New はスタブAPIの echo を組み立てる。faults は nil でよい
func New(cfg config.ServerConfig, h Handlers, faults *middleware.Faults) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	RegisterRoutes(e, cfg, h, faults)
	return e
}

// Start は ctx が終わるまで待ち受ける
func Start(ctx context.Context, addr string, e *echo.Echo) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}

// echo のエラーも {message, error, statusCode} で返す
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if s, ok := he.Message.(string); ok {
			msg = s
		} else {
			msg = http.StatusText(status)
		}
	}
	_ = c.JSON(status, map[string]any{
		"message":    msg,
		"error":      http.StatusText(status),
		"statusCode": status,
	})
}
