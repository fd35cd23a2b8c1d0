package stub_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"cartsync/internal/domain/model"
	stub "cartsync/internal/usecase/stub_usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func newBackend() *stub.Backend {
	b := stub.NewBackend(&seqIDs{})
	b.SeedProducts(
		model.Product{ID: "pho-bo", Name: "Phở bò", Price: decimal.NewFromInt(50000), ImagePath: "/p.jpg"},
		model.Product{ID: "banh-mi", Name: "Bánh mì", Price: decimal.NewFromInt(30000)},
	)
	return b
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := stub.AsHTTPError(err)
	require.True(t, ok, "want HTTPError, got %v", err)
	return he.Status
}

func TestBackend_AddAccumulates(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	_, err := b.AddItem(ctx, "u1", "pho-bo", 1)
	require.NoError(t, err)
	res, err := b.AddItem(ctx, "u1", "pho-bo", 2)
	require.NoError(t, err)

	require.Len(t, res.Cart.Items, 1)
	assert.Equal(t, int64(3), res.Cart.Items[0].Quantity)
	assert.Equal(t, int64(3), res.TotalItems)
	assert.Nil(t, res.Cart.Items[0].Price)
}

func TestBackend_Rejections(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	_, err := b.AddItem(ctx, "u1", "pho-bo", 0)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = b.AddItem(ctx, "u1", "ghost", 1)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = b.UpdateItem(ctx, "u1", "pho-bo", 2)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = b.RemoveItem(ctx, "u1", "pho-bo")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = b.GetCart(ctx, "")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestBackend_CartsArePerUser(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	_, err := b.AddItem(ctx, "u1", "pho-bo", 1)
	require.NoError(t, err)

	other, err := b.GetCart(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other.Cart.Items)

	mine, err := b.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, mine.Cart.ID, other.Cart.ID)
}

func TestBackend_Denormalize(t *testing.T) {
	b := newBackend()
	b.SetDenormalize(true)

	res, err := b.AddItem(context.Background(), "u1", "pho-bo", 2)
	require.NoError(t, err)
	it := res.Cart.Items[0]
	require.NotNil(t, it.Price)
	assert.True(t, it.Price.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "Phở bò", it.Name)
	assert.Equal(t, "/p.jpg", it.Image)
}

func TestBackend_GetProduct(t *testing.T) {
	b := newBackend()

	p, err := b.GetProduct(context.Background(), "pho-bo")
	require.NoError(t, err)
	require.Len(t, p.Images, 1)
	assert.Equal(t, "/p.jpg", p.Images[0].Path)

	p, err = b.GetProduct(context.Background(), "banh-mi")
	require.NoError(t, err)
	assert.Empty(t, p.Images)

	_, err = b.GetProduct(context.Background(), "ghost")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestBackend_PlaceOrder(t *testing.T) {
	b := newBackend()
	ctx := context.Background()

	_, err := b.AddItem(ctx, "u1", "pho-bo", 2)
	require.NoError(t, err)
	res, err := b.AddItem(ctx, "u1", "banh-mi", 1)
	require.NoError(t, err)
	cartID := res.Cart.ID

	in := stub.PlaceOrderInput{CartID: cartID, ProductIDs: []string{"pho-bo"}, Notes: "n", IdempotencyKey: "k1"}
	order, err := b.PlaceOrder(ctx, "u1", in)
	require.NoError(t, err)
	assert.Equal(t, "pending", order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(100000)))

	// 注文した商品だけ外れる
	left, err := b.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, left.Cart.Items, 1)
	assert.Equal(t, "banh-mi", left.Cart.Items[0].ProductID)

	// 同じキーは同じ注文
	again, err := b.PlaceOrder(ctx, "u1", in)
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)
}

func TestBackend_PlaceOrderRejections(t *testing.T) {
	b := newBackend()
	ctx := context.Background()
	res, err := b.AddItem(ctx, "u1", "pho-bo", 1)
	require.NoError(t, err)

	_, err = b.PlaceOrder(ctx, "u1", stub.PlaceOrderInput{ProductIDs: []string{"pho-bo"}})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = b.PlaceOrder(ctx, "u1", stub.PlaceOrderInput{CartID: "other", ProductIDs: []string{"pho-bo"}})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = b.PlaceOrder(ctx, "u1", stub.PlaceOrderInput{CartID: res.Cart.ID, ProductIDs: []string{"banh-mi"}})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}
