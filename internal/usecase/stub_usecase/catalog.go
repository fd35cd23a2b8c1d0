package stub

import (
	"context"
	"net/http"

	"cartsync/internal/domain/model"

	"github.com/shopspring/decimal"
)

type ImageResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// GET /products/{id} の応答（Food）
type ProductResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Images []ImageResponse `json:"images"`
}

// 商品を登録（起動時・テスト用）
func (b *Backend) SeedProducts(products ...model.Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range products {
		b.products[p.ID] = p
	}
}

func (b *Backend) GetProduct(ctx context.Context, productID string) (ProductResponse, error) {
	if productID == "" {
		return ProductResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	b.wait(ctx)

	b.mu.Lock()
	p, ok := b.products[productID]
	b.mu.Unlock()
	if !ok {
		return ProductResponse{}, NewHTTPError(http.StatusNotFound, "Food not found")
	}

	out := ProductResponse{ID: p.ID, Name: p.Name, Price: p.Price, Images: []ImageResponse{}}
	if p.ImagePath != "" {
		out.Images = append(out.Images, ImageResponse{ID: p.ID + "-0", Path: p.ImagePath})
	}
	return out, nil
}
