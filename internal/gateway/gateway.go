package gateway

import (
	"context"

	"cartsync/internal/domain/model"
)

// サーバー側カートの操作。どれもサーバーの最新カートを返す。
type CartGateway interface {
	FetchCart(ctx context.Context) (model.RemoteCart, error)
	AddItem(ctx context.Context, productID string, quantity int64) (model.RemoteCart, error)
	UpdateItem(ctx context.Context, productID string, quantity int64) (model.RemoteCart, error)
	RemoveItem(ctx context.Context, productID string) (model.RemoteCart, error)
	ClearCart(ctx context.Context) (model.RemoteCart, error)
}

// 商品の価格・名前・画像の取得。無ければ KindNotFound。
type CatalogGateway interface {
	GetProduct(ctx context.Context, productID string) (model.Product, error)
}

// カートから注文を作る
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderReceipt, error)
}
