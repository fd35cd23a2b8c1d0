package repository

import (
	"context"

	"cartsync/internal/domain/model"
)

// ローカルのカート写しの永続化だけを約束。
// Save は header と明細を1トランザクションで置き換える。
type CartStateRepository interface {
	Load(ctx context.Context, owner string) (model.CartSnapshot, error)
	Save(ctx context.Context, owner string, snap model.CartSnapshot) error
	Clear(ctx context.Context, owner string) error
}
