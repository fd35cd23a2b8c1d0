package handler

import (
	"net/http"

	stub "cartsync/internal/usecase/stub_usecase"

	"github.com/labstack/echo/v4"
)

// エラー応答 {message, error, statusCode}
type ErrorResponse struct {
	Message    string `json:"message"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

func newErrorResponse(status int, message string) ErrorResponse {
	return ErrorResponse{Message: message, Error: http.StatusText(status), StatusCode: status}
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := stub.AsHTTPError(err); ok {
		return c.JSON(he.Status, newErrorResponse(he.Status, he.Message))
	}

	//500
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, newErrorResponse(http.StatusInternalServerError, "internal error"))
}

// /products の公開API
type ProductHandler struct {
	backend *stub.Backend
}

// DI
func NewProductHandler(backend *stub.Backend) *ProductHandler {
	return &ProductHandler{backend: backend}
}

func (h *ProductHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/products/:id", h.detail)
}

func (h *ProductHandler) detail(c echo.Context) error {
	out, err := h.backend.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
