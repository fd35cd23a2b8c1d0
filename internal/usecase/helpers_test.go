package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cartsync/internal/domain/model"
	"cartsync/internal/gateway"
	repo "cartsync/internal/repository"
	"cartsync/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =====================
// Mocks（衝突回避の命名）
// =====================

type CartGatewayMock struct{ mock.Mock }

func (m *CartGatewayMock) FetchCart(ctx context.Context) (model.RemoteCart, error) {
	args := m.Called(ctx)
	rc, _ := args.Get(0).(model.RemoteCart)
	return rc, args.Error(1)
}

func (m *CartGatewayMock) AddItem(ctx context.Context, productID string, quantity int64) (model.RemoteCart, error) {
	args := m.Called(ctx, productID, quantity)
	rc, _ := args.Get(0).(model.RemoteCart)
	return rc, args.Error(1)
}

func (m *CartGatewayMock) UpdateItem(ctx context.Context, productID string, quantity int64) (model.RemoteCart, error) {
	args := m.Called(ctx, productID, quantity)
	rc, _ := args.Get(0).(model.RemoteCart)
	return rc, args.Error(1)
}

func (m *CartGatewayMock) RemoveItem(ctx context.Context, productID string) (model.RemoteCart, error) {
	args := m.Called(ctx, productID)
	rc, _ := args.Get(0).(model.RemoteCart)
	return rc, args.Error(1)
}

func (m *CartGatewayMock) ClearCart(ctx context.Context) (model.RemoteCart, error) {
	args := m.Called(ctx)
	rc, _ := args.Get(0).(model.RemoteCart)
	return rc, args.Error(1)
}

type CatalogGatewayMock struct{ mock.Mock }

func (m *CatalogGatewayMock) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

type OrderGatewayMock struct{ mock.Mock }

func (m *OrderGatewayMock) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderReceipt, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(model.OrderReceipt)
	return r, args.Error(1)
}

var (
	_ gateway.CartGateway    = (*CartGatewayMock)(nil)
	_ gateway.CatalogGateway = (*CatalogGatewayMock)(nil)
	_ gateway.OrderGateway   = (*OrderGatewayMock)(nil)
)

// =====================
// メモリ上の CartStateRepository
// =====================

type memStateRepo struct {
	mu      sync.Mutex
	saved   map[string]model.CartSnapshot
	saves   int
	saveErr error
	loadErr error
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{saved: map[string]model.CartSnapshot{}}
}

func (r *memStateRepo) Load(_ context.Context, owner string) (model.CartSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return model.CartSnapshot{}, r.loadErr
	}
	s, ok := r.saved[owner]
	if !ok {
		return model.EmptySnapshot(), nil
	}
	return s.Clone(), nil
}

func (r *memStateRepo) Save(_ context.Context, owner string, snap model.CartSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved[owner] = snap.Clone()
	r.saves++
	return nil
}

func (r *memStateRepo) Clear(_ context.Context, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	delete(r.saved, owner)
	return nil
}

func (r *memStateRepo) setSaveErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

func (r *memStateRepo) get(owner string) (model.CartSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.saved[owner]
	return s.Clone(), ok
}

var _ repo.CartStateRepository = (*memStateRepo)(nil)

// =====================
// helper
// =====================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func remoteCart(cartID string, items ...model.RemoteItem) model.RemoteCart {
	return model.RemoteCart{CartID: cartID, Items: items}
}

// 価格・名前なし（enrichment対象）
func bareItem(id string, qty int64) model.RemoteItem {
	return model.RemoteItem{ProductID: id, Quantity: qty}
}

// 価格・名前つき（enrichment不要）
func pricedItem(id string, qty int64, price int64) model.RemoteItem {
	return model.RemoteItem{
		ProductID: id,
		Quantity:  qty,
		UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(price)),
		Name:      "name-" + id,
	}
}

func product(id string, price int64) model.Product {
	return model.Product{ID: id, Name: "name-" + id, Price: decimal.NewFromInt(price), ImagePath: "/img/" + id}
}

type engineFixture struct {
	carts   *CartGatewayMock
	catalog *CatalogGatewayMock
	orders  *OrderGatewayMock
	repo    *memStateRepo
	engine  *usecase.CartEngine
}

func testEngineOptions() usecase.EngineOptions {
	return usecase.EngineOptions{
		Owner:           "u1",
		Debounce:        30 * time.Millisecond,
		MutationTimeout: 2 * time.Second,
		Enrich: usecase.EnricherOptions{
			MaxAttempts:    3,
			RetryDelay:     5 * time.Millisecond,
			AttemptTimeout: time.Second,
			Concurrency:    4,
		},
		Logger:            discardLogger(),
		NewIdempotencyKey: func() string { return "idem-1" },
	}
}

func newEngineFixture(t *testing.T, tweak ...func(*usecase.EngineOptions)) *engineFixture {
	t.Helper()

	opts := testEngineOptions()
	for _, fn := range tweak {
		fn(&opts)
	}

	f := &engineFixture{
		carts:   new(CartGatewayMock),
		catalog: new(CatalogGatewayMock),
		orders:  new(OrderGatewayMock),
		repo:    newMemStateRepo(),
	}
	f.engine = usecase.NewCartEngine(f.carts, f.catalog, f.orders, f.repo, opts)
	t.Cleanup(f.engine.Close)
	return f
}

// 通知が来るまで待つ
func waitClosed(t *testing.T, ch <-chan struct{}, d time.Duration) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}
