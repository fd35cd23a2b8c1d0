package stub

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PlaceOrderInput struct {
	CartID         string
	ProductIDs     []string
	Notes          string
	IdempotencyKey string
}

type OrderResponse struct {
	ID          string          `json:"_id"`
	CartID      string          `json:"cartId"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// PlaceOrder はカートの指定商品で注文を作り、その商品をカートから外す。
// 同じ冪等キーなら同じ注文を返す。
func (b *Backend) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (OrderResponse, error) {
	if userID == "" {
		return OrderResponse{}, NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderResponse{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency key")
	}
	if in.CartID == "" {
		return OrderResponse{}, NewHTTPError(http.StatusBadRequest, "cartId should not be empty")
	}
	if len(in.ProductIDs) == 0 {
		return OrderResponse{}, NewHTTPError(http.StatusBadRequest, "productIds should not be empty")
	}
	b.wait(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	// 同じキーなら同じ結果
	if key != "" {
		if id, ok := b.idem[userID+":"+key]; ok {
			return b.orders[id], nil
		}
	}

	c, ok := b.carts[userID]
	if !ok || c.id != in.CartID {
		return OrderResponse{}, NewHTTPError(http.StatusNotFound, "Cart not found")
	}

	total := decimal.Zero
	for _, id := range in.ProductIDs {
		i := c.find(id)
		if i < 0 {
			return OrderResponse{}, NewHTTPError(http.StatusBadRequest, "product "+id+" is not in cart")
		}
		p, ok := b.products[id]
		if !ok {
			return OrderResponse{}, NewHTTPError(http.StatusNotFound, "Food not found")
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(c.lines[i].quantity)))
	}

	//注文した商品はカートから外す
	ordered := make(map[string]struct{}, len(in.ProductIDs))
	for _, id := range in.ProductIDs {
		ordered[id] = struct{}{}
	}
	kept := c.lines[:0]
	for _, l := range c.lines {
		if _, ok := ordered[l.productID]; !ok {
			kept = append(kept, l)
		}
	}
	c.lines = kept

	order := OrderResponse{
		ID:          b.idGen.NewID(),
		CartID:      c.id,
		Status:      "pending",
		TotalAmount: total,
		Notes:       in.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	b.orders[order.ID] = order
	if key != "" {
		b.idem[userID+":"+key] = order.ID
	}
	return order, nil
}
