package stub

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"cartsync/internal/domain/model"

	"github.com/shopspring/decimal"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// CartItemResponse は denormalize が有効なときだけ price/name/image を入れる。
type CartItemResponse struct {
	ProductID string           `json:"productId"`
	Quantity  int64            `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Name      string           `json:"name,omitempty"`
	Image     string           `json:"image,omitempty"`
}

type CartBody struct {
	ID       string             `json:"id"`
	UserID   string             `json:"userId"`
	IsActive bool               `json:"isActive"`
	Items    []CartItemResponse `json:"items"`
}

// GET /carts/me などの応答
type CartResponse struct {
	Cart        CartBody `json:"cart"`
	HasNextPage bool     `json:"hasNextPage"`
	TotalItems  int64    `json:"totalItems"`
}

type cartLine struct {
	productID string
	quantity  int64
}

type cart struct {
	id    string
	lines []cartLine // 追加順
}

func (c *cart) find(productID string) int {
	for i, l := range c.lines {
		if l.productID == productID {
			return i
		}
	}
	return -1
}

// Backend はスタブAPIの中身（カート・商品・注文）をメモリで持つ。
type Backend struct {
	idGen IDGenerator

	mu          sync.Mutex
	denormalize bool
	delay       time.Duration
	products    map[string]model.Product
	carts       map[string]*cart // userId -> ACTIVEカート
	orders      map[string]OrderResponse
	idem        map[string]string // userId + key -> orderId
}

// DI
func NewBackend(idGen IDGenerator) *Backend {
	return &Backend{
		idGen:    idGen,
		products: map[string]model.Product{},
		carts:    map[string]*cart{},
		orders:   map[string]OrderResponse{},
		idem:     map[string]string{},
	}
}

// カート応答に価格・名前を載せるか
func (b *Backend) SetDenormalize(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.denormalize = on
}

// 応答の遅延（遅い回線の再現用）
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

func (b *Backend) wait(ctx context.Context) {
	b.mu.Lock()
	d := b.delay
	b.mu.Unlock()
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// カート取得（無ければACTIVEを作って空を返す）
func (b *Backend) GetCart(ctx context.Context, userID string) (CartResponse, error) {
	if userID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	b.wait(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.responseLocked(userID, b.activeLocked(userID)), nil
}

// 同一商品は数量加算
func (b *Backend) AddItem(ctx context.Context, userID, productID string, quantity int64) (CartResponse, error) {
	if userID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "productId should not be empty")
	}
	if quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "quantity must not be less than 1")
	}
	b.wait(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.products[productID]; !ok {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "Product not found")
	}

	c := b.activeLocked(userID)
	if i := c.find(productID); i >= 0 {
		c.lines[i].quantity += quantity
	} else {
		c.lines = append(c.lines, cartLine{productID: productID, quantity: quantity})
	}
	return b.responseLocked(userID, c), nil
}

func (b *Backend) UpdateItem(ctx context.Context, userID, productID string, quantity int64) (CartResponse, error) {
	if userID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	if quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "quantity must not be less than 1")
	}
	b.wait(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.activeLocked(userID)
	i := c.find(productID)
	if i < 0 {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "Item not found in cart")
	}
	c.lines[i].quantity = quantity
	return b.responseLocked(userID, c), nil
}

func (b *Backend) RemoveItem(ctx context.Context, userID, productID string) (CartResponse, error) {
	if userID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	b.wait(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.activeLocked(userID)
	i := c.find(productID)
	if i < 0 {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "Item not found in cart")
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return b.responseLocked(userID, c), nil
}

func (b *Backend) ClearCart(ctx context.Context, userID string) (CartResponse, error) {
	if userID == "" {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	b.wait(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.activeLocked(userID)
	c.lines = nil
	return b.responseLocked(userID, c), nil
}

func (b *Backend) activeLocked(userID string) *cart {
	c, ok := b.carts[userID]
	if !ok {
		c = &cart{id: b.idGen.NewID()}
		b.carts[userID] = c
	}
	return c
}

func (b *Backend) responseLocked(userID string, c *cart) CartResponse {
	out := CartResponse{
		Cart: CartBody{
			ID:       c.id,
			UserID:   userID,
			IsActive: true,
			Items:    make([]CartItemResponse, 0, len(c.lines)),
		},
	}
	for _, l := range c.lines {
		it := CartItemResponse{ProductID: l.productID, Quantity: l.quantity}
		if b.denormalize {
			if p, ok := b.products[l.productID]; ok {
				price := p.Price
				it.Price = &price
				it.Name = p.Name
				it.Image = p.ImagePath
			}
		}
		out.Cart.Items = append(out.Cart.Items, it)
		out.TotalItems += l.quantity
	}
	return out
}
