package api

import (
	"encoding/json"
	"strings"

	"cartsync/internal/domain/model"

	"github.com/shopspring/decimal"
)

// サーバーのカート応答
type CartEnvelope struct {
	Cart        CartDTO `json:"cart"`
	HasNextPage bool    `json:"hasNextPage"`
	TotalItems  int64   `json:"totalItems"`
}

type CartDTO struct {
	ID       string        `json:"id"`
	UserID   string        `json:"userId"`
	IsActive bool          `json:"isActive"`
	Items    []CartItemDTO `json:"items"`
}

// price/name/image は返ってこないこともある
type CartItemDTO struct {
	ProductID string           `json:"productId"`
	Quantity  int64            `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Name      string           `json:"name,omitempty"`
	Image     string           `json:"image,omitempty"`
}

type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity int64 `json:"quantity"`
}

type ImageDTO struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// 商品（Food）
type ProductDTO struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Images []ImageDTO      `json:"images"`
}

type OrderRequestDTO struct {
	CartID     string   `json:"cartId"`
	ProductIDs []string `json:"productIds"`
	Notes      string   `json:"notes"`
}

type OrderDTO struct {
	ID          string          `json:"_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// エラー応答。message は文字列か文字列の配列
type ErrorBody struct {
	Message    json.RawMessage `json:"message"`
	Error      string          `json:"error"`
	StatusCode int             `json:"statusCode"`
}

func (b ErrorBody) Text() string {
	if len(b.Message) > 0 {
		var s string
		if err := json.Unmarshal(b.Message, &s); err == nil && s != "" {
			return s
		}
		var list []string
		if err := json.Unmarshal(b.Message, &list); err == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
	}
	return b.Error
}

func (c CartDTO) toRemote() model.RemoteCart {
	out := model.RemoteCart{
		CartID: c.ID,
		Items:  make([]model.RemoteItem, 0, len(c.Items)),
	}
	for _, it := range c.Items {
		ri := model.RemoteItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Name:      it.Name,
			ImageRef:  it.Image,
		}
		if it.Price != nil {
			ri.UnitPrice = decimal.NewNullDecimal(*it.Price)
		}
		out.Items = append(out.Items, ri)
	}
	return out
}

func (p ProductDTO) toProduct() model.Product {
	out := model.Product{ID: p.ID, Name: p.Name, Price: p.Price}
	if len(p.Images) > 0 {
		out.ImagePath = p.Images[0].Path
	}
	return out
}

func (o OrderDTO) toReceipt() model.OrderReceipt {
	return model.OrderReceipt{OrderID: o.ID, Status: model.OrderStatus(o.Status)}
}
