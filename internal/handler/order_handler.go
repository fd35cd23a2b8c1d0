package handler

import (
	"net/http"

	stub "cartsync/internal/usecase/stub_usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	backend *stub.Backend
}

// DI
func NewOrderHandler(backend *stub.Backend) *OrderHandler {
	return &OrderHandler{backend: backend}
}

type OrderCreateRequest struct {
	CartID     string   `json:"cartId"`
	ProductIDs []string `json:"productIds"`
	Notes      string   `json:"notes"`
}

func (h *OrderHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/orders/custom", h.create)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, newErrorResponse(http.StatusUnauthorized, "Unauthorized"))
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, newErrorResponse(http.StatusBadRequest, "invalid body"))
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	out, err := h.backend.PlaceOrder(c.Request().Context(), userID, stub.PlaceOrderInput{
		CartID:         req.CartID,
		ProductIDs:     req.ProductIDs,
		Notes:          req.Notes,
		IdempotencyKey: c.Request().Header.Get("X-Idempotency-Key"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
