package server

import (
	"cartsync/internal/config"
	"cartsync/internal/middleware"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, cfg config.ServerConfig, h Handlers, faults *middleware.Faults) {
	api := e.Group("/api/v1", middleware.InjectFaults(faults))
	h.Auth.RegisterRoutes(api)

	//ここから先はBearer必須
	secured := api.Group("", middleware.AuthJWT(cfg.JWTSecret))
	h.Cart.RegisterRoutes(secured)
	h.Product.RegisterRoutes(secured)
	h.Order.RegisterRoutes(secured)
}
