package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cartsync/internal/domain/model"
	"cartsync/internal/gateway"
	repo "cartsync/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

type EngineOptions struct {
	Owner           string
	Debounce        time.Duration
	MutationTimeout time.Duration
	Enrich          EnricherOptions
	Pricing         Pricing
	Logger          *slog.Logger

	// 注文の冪等キー。テストで差し替える
	NewIdempotencyKey func() string
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Owner:             "default",
		Debounce:          500 * time.Millisecond,
		MutationTimeout:   10 * time.Second,
		Enrich:            DefaultEnricherOptions(),
		Pricing:           DefaultPricing(),
		NewIdempotencyKey: uuid.NewString,
	}
}

// CartEngine はカート同期の唯一の入口。
// 変更系の通信は1本ずつ流し、番号の古いレスポンスは捨てる。
type CartEngine struct {
	carts  gateway.CartGateway
	orders gateway.OrderGateway

	store     *CartStore
	enricher  *Enricher
	debouncer *Debouncer
	seq       *Sequencer
	gate      *semaphore.Weighted
	hub       *viewHub

	opts EngineOptions
	log  *slog.Logger

	authMu      sync.Mutex
	authExpired bool
	authCh      chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	enrichMu sync.Mutex
	inflight map[string]int64 // productId -> 世代
	closed   bool

	closeOnce sync.Once
}

// DI
func NewCartEngine(carts gateway.CartGateway, catalog gateway.CatalogGateway, orders gateway.OrderGateway, states repo.CartStateRepository, opts EngineOptions) *CartEngine {
	def := DefaultEngineOptions()
	if opts.Owner == "" {
		opts.Owner = def.Owner
	}
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.MutationTimeout <= 0 {
		opts.MutationTimeout = def.MutationTimeout
	}
	if opts.Pricing.DeliveryFee.IsZero() && opts.Pricing.TaxRate.IsZero() {
		opts.Pricing = def.Pricing
	}
	if opts.NewIdempotencyKey == nil {
		opts.NewIdempotencyKey = def.NewIdempotencyKey
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("owner", opts.Owner)
	if opts.Enrich.Logger == nil {
		opts.Enrich.Logger = log
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &CartEngine{
		carts:    carts,
		orders:   orders,
		store:    NewCartStore(states, opts.Owner),
		enricher: NewEnricher(catalog, opts.Enrich),
		seq:      NewSequencer(),
		gate:     semaphore.NewWeighted(1),
		hub:      newViewHub(),
		opts:     opts,
		log:      log,
		authCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		inflight: map[string]int64{},
	}
	e.debouncer = NewDebouncer(e, e.store.Snapshot, opts.Debounce, log, e.refresh)

	// ロック順: store -> hub -> debouncer
	e.store.OnChange(func(snap model.CartSnapshot, version int64) {
		e.hub.publish(snap, version, e.buildView(nil))
	})
	return e
}

// Restore は起動時にローカルの写しを読む（通信しない）
func (e *CartEngine) Restore(ctx context.Context) (model.CartSnapshot, error) {
	snap, err := e.store.Restore(ctx)
	if err != nil {
		return snap, err
	}
	// 再起動後のレスポンスが全部古い扱いにならないように
	e.seq.AdvanceTo(snap.AppliedSequence)
	e.scheduleEnrichment(snap)
	return snap, nil
}

// Load はサーバーのカートで写しを置き換える。
// 変更系とは並行に走るので、後から出た変更があればこちらが捨てられる。
func (e *CartEngine) Load(ctx context.Context) (model.CartSnapshot, error) {
	if err := e.checkAuth(); err != nil {
		return e.store.Snapshot(), err
	}

	seq := e.seq.Next()
	cctx, cancel := context.WithTimeout(ctx, e.opts.MutationTimeout)
	defer cancel()

	remote, err := e.carts.FetchCart(cctx)
	if err != nil {
		return e.store.Snapshot(), e.fail("fetch cart", seq, err)
	}
	return e.apply(ctx, "fetch cart", seq, remote, replaceFromRemote)
}

func (e *CartEngine) Add(ctx context.Context, productID string, quantity int64) (model.CartSnapshot, error) {
	if err := validateLine(productID, quantity); err != nil {
		return e.store.Snapshot(), err
	}
	return e.mutate(ctx, "add item", func(ctx context.Context) (model.RemoteCart, error) {
		return e.carts.AddItem(ctx, productID, quantity)
	}, mergeRemote)
}

// SetQuantity は数量を確定させる。0にしたいときは RemoveItem
func (e *CartEngine) SetQuantity(ctx context.Context, productID string, quantity int64) (model.CartSnapshot, error) {
	if err := validateLine(productID, quantity); err != nil {
		return e.store.Snapshot(), err
	}
	return e.mutate(ctx, "update item", func(ctx context.Context) (model.RemoteCart, error) {
		return e.carts.UpdateItem(ctx, productID, quantity)
	}, mergeRemote)
}

func (e *CartEngine) RemoveItem(ctx context.Context, productID string) (model.CartSnapshot, error) {
	if productID == "" {
		return e.store.Snapshot(), model.NewValidationError("product id is required")
	}
	// 削除後に古い確定が飛ばないように先に止める
	e.debouncer.Cancel(productID)

	return e.mutate(ctx, "remove item", func(ctx context.Context) (model.RemoteCart, error) {
		return e.carts.RemoveItem(ctx, productID)
	}, mergeRemote)
}

// Clear はサーバーとローカルのカートを空にする。cartId も消える
func (e *CartEngine) Clear(ctx context.Context) (model.CartSnapshot, error) {
	e.debouncer.CancelAll()

	return e.mutate(ctx, "clear cart", func(ctx context.Context) (model.RemoteCart, error) {
		return e.carts.ClearCart(ctx)
	}, func(prev model.CartSnapshot, _ model.RemoteCart, seq int64) model.CartSnapshot {
		return clearedSnapshot(prev, seq)
	})
}

// PlaceOrder は今のカートで注文する。成功したらローカルのカートを空にする。
// ローカル保存だけ失敗したときは receipt と PersistenceError を両方返す。
func (e *CartEngine) PlaceOrder(ctx context.Context, customer model.CustomerInfo) (model.OrderReceipt, error) {
	if err := customer.Validate(); err != nil {
		return model.OrderReceipt{}, err
	}
	if err := e.checkAuth(); err != nil {
		return model.OrderReceipt{}, err
	}
	if err := e.acquire(ctx, "place order"); err != nil {
		return model.OrderReceipt{}, err
	}
	defer e.gate.Release(1)

	snap := e.store.Snapshot()
	if !snap.HasCart() {
		return model.OrderReceipt{}, model.NewValidationError("cart is not loaded")
	}
	if snap.IsEmpty() {
		return model.OrderReceipt{}, model.NewValidationError("cart is empty")
	}

	req := model.OrderRequest{
		CartID:         snap.CartID,
		ProductIDs:     snap.ProductIDs(),
		Notes:          customer.Notes(),
		IdempotencyKey: e.opts.NewIdempotencyKey(),
	}
	seq := e.seq.Next()
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.MutationTimeout)
	defer cancel()

	receipt, err := e.orders.PlaceOrder(cctx, req)
	if err != nil {
		return model.OrderReceipt{}, e.fail("place order", seq, err)
	}
	e.log.Info("order placed", "order_id", receipt.OrderID, "cart_id", req.CartID, "seq", seq)

	e.debouncer.CancelAll()
	_, err = e.store.Update(ctx, func(s *model.CartSnapshot) (bool, error) {
		*s = clearedSnapshot(*s, seq)
		return true, nil
	})
	return receipt, err
}

// ChangeQuantity はUIの +/- を受ける。表示はすぐ変わり、通信はまとめて1回
func (e *CartEngine) ChangeQuantity(productID string, quantity int64) error {
	if err := e.checkAuth(); err != nil {
		return err
	}
	return e.debouncer.Change(productID, quantity)
}

func (e *CartEngine) DisplayedQuantity(productID string) int64 {
	if q, ok := e.debouncer.Displayed(productID); ok {
		return q
	}
	return e.store.Snapshot().QuantityOf(productID)
}

func (e *CartEngine) Snapshot() model.CartSnapshot {
	return e.store.Snapshot()
}

func (e *CartEngine) Totals() model.Totals {
	return ComputeTotals(e.store.Snapshot())
}

func (e *CartEngine) Checkout() (model.CheckoutSummary, error) {
	return Checkout(e.Totals(), e.opts.Pricing)
}

// Subscribe は最新の CartView を流す。受信側が遅ければ途中の値は飛ばす
func (e *CartEngine) Subscribe() (<-chan CartView, func()) {
	ch, unsubscribe := e.hub.subscribe()
	e.refresh(nil)
	return ch, unsubscribe
}

// AuthExpired は401を受けたら閉じる
func (e *CartEngine) AuthExpired() <-chan struct{} {
	e.authMu.Lock()
	defer e.authMu.Unlock()
	return e.authCh
}

// Logout はセッション側から呼ぶ。ローカルのカートを消して認証状態を戻す
func (e *CartEngine) Logout(ctx context.Context) error {
	e.debouncer.CancelAll()
	e.enricher.Reset()

	e.authMu.Lock()
	if e.authExpired {
		e.authExpired = false
		e.authCh = make(chan struct{})
	}
	e.authMu.Unlock()

	// 送信中の変更・load が戻ってきてもカートを復活させない
	_, err := e.store.Reset(ctx, e.seq.Next())
	return err
}

// Close はタイマーと商品取得を止める。送信済みの変更は最後まで走る
func (e *CartEngine) Close() {
	e.closeOnce.Do(func() {
		e.debouncer.Close()
		e.cancel()

		e.enrichMu.Lock()
		e.closed = true
		e.enrichMu.Unlock()

		e.wg.Wait()
		e.hub.close()
	})
}

type applyFunc func(prev model.CartSnapshot, remote model.RemoteCart, seq int64) model.CartSnapshot

func (e *CartEngine) mutate(ctx context.Context, op string, call func(ctx context.Context) (model.RemoteCart, error), fn applyFunc) (model.CartSnapshot, error) {
	if err := e.checkAuth(); err != nil {
		return e.store.Snapshot(), err
	}
	if e.isClosed() {
		return e.store.Snapshot(), model.NewValidationError("cart engine is closed")
	}
	if err := e.acquire(ctx, op); err != nil {
		return e.store.Snapshot(), err
	}
	defer e.gate.Release(1)

	// 待っている間に401が来ていたら出さない
	if err := e.checkAuth(); err != nil {
		return e.store.Snapshot(), err
	}

	seq := e.seq.Next()
	// 送った変更は呼び出し元が居なくなっても完了させる
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.MutationTimeout)
	defer cancel()

	e.log.Debug("dispatch", "op", op, "seq", seq)
	remote, err := call(cctx)
	if err != nil {
		return e.store.Snapshot(), e.fail(op, seq, err)
	}
	return e.apply(ctx, op, seq, remote, fn)
}

func (e *CartEngine) apply(ctx context.Context, op string, seq int64, remote model.RemoteCart, fn applyFunc) (model.CartSnapshot, error) {
	stale := false
	snap, err := e.store.Update(ctx, func(s *model.CartSnapshot) (bool, error) {
		if e.isStale(seq, *s) {
			stale = true
			return false, nil
		}
		*s = fn(*s, remote, seq)
		return true, nil
	})
	if stale {
		e.log.Info("discarded stale response",
			"op", op, "seq", seq, "applied_seq", snap.AppliedSequence, "latest_seq", e.seq.Current())
		return snap, nil
	}
	if err != nil {
		e.log.Error("persist cart failed", "op", op, "seq", seq, "error", err)
	}
	e.scheduleEnrichment(snap)
	return snap, err
}

// 最後に出した番号より古い、または適用済み以下なら捨てる
func (e *CartEngine) isStale(seq int64, s model.CartSnapshot) bool {
	return seq <= s.AppliedSequence || seq < e.seq.Current()
}

func (e *CartEngine) acquire(ctx context.Context, op string) error {
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return model.NewNetworkError(op, err)
	}
	return nil
}

func (e *CartEngine) fail(op string, seq int64, err error) error {
	err = normalizeErr(op, err)
	e.noteAuth(err)
	e.log.Warn("cart call failed", "op", op, "seq", seq, "kind", model.KindOf(err), "error", err)
	return err
}

func normalizeErr(op string, err error) error {
	if _, ok := model.AsCartError(err); ok {
		return err
	}
	// タイムアウトも含めて通信エラー
	return model.NewNetworkError(op, err)
}

func (e *CartEngine) checkAuth() error {
	e.authMu.Lock()
	defer e.authMu.Unlock()
	if e.authExpired {
		return model.NewAuthExpiredError("session expired")
	}
	return nil
}

func (e *CartEngine) noteAuth(err error) {
	if !model.IsKind(err, model.KindAuthExpired) {
		return
	}
	e.authMu.Lock()
	defer e.authMu.Unlock()
	if e.authExpired {
		return
	}
	e.authExpired = true
	close(e.authCh)
	e.log.Warn("auth expired, mutations stopped")
}

func (e *CartEngine) isClosed() bool {
	e.enrichMu.Lock()
	defer e.enrichMu.Unlock()
	return e.closed
}

// scheduleEnrichment は価格・名前が足りない明細の取得を始める。
// 同じ世代で取得中のものは重ねない。世代が変われば試行回数は数え直し。
func (e *CartEngine) scheduleEnrichment(snap model.CartSnapshot) {
	if e.checkAuth() != nil {
		return
	}

	e.enrichMu.Lock()
	defer e.enrichMu.Unlock()
	if e.closed {
		return
	}
	for _, id := range snap.ProductIDs() {
		it := snap.Items[id]
		if it.IsResolved() || it.Enrichment == model.EnrichmentFailed {
			continue
		}
		if gen, ok := e.inflight[id]; ok {
			if gen == snap.Generation {
				continue
			}
			// 前の世代の再試行には乗らない
			e.enricher.Forget(id)
		}
		e.inflight[id] = snap.Generation
		e.wg.Add(1)
		go e.enrich(id, snap.Generation)
	}
}

func (e *CartEngine) enrich(productID string, gen int64) {
	defer e.wg.Done()
	defer func() {
		e.enrichMu.Lock()
		if e.inflight[productID] == gen {
			delete(e.inflight, productID)
		}
		e.enrichMu.Unlock()
	}()

	p, err := e.enricher.Resolve(e.ctx, productID)
	if e.ctx.Err() != nil {
		return
	}
	if err != nil {
		e.noteAuth(err)
		if model.IsKind(err, model.KindAuthExpired) {
			// 期限切れは失敗扱いにしない。再ログイン後の load で取り直す
			return
		}
		e.log.Warn("enrichment gave up", "product_id", productID, "generation", gen, "error", err)
		e.updateItem(productID, func(s model.CartSnapshot, it model.LineItem) (model.LineItem, bool) {
			if s.Generation != gen || it.IsResolved() {
				return it, false
			}
			it.Enrichment = model.EnrichmentFailed
			return it, true
		})
		return
	}

	e.updateItem(productID, func(_ model.CartSnapshot, it model.LineItem) (model.LineItem, bool) {
		next := it.FillFrom(p)
		return next, !sameDisplay(it, next)
	})
}

func (e *CartEngine) updateItem(productID string, fn func(s model.CartSnapshot, it model.LineItem) (model.LineItem, bool)) {
	_, err := e.store.Update(context.Background(), func(s *model.CartSnapshot) (bool, error) {
		it, ok := s.Items[productID]
		if !ok {
			return false, nil
		}
		next, changed := fn(*s, it)
		if !changed {
			return false, nil
		}
		s.Items[productID] = next
		return true, nil
	})
	if err != nil {
		e.log.Error("persist enrichment failed", "product_id", productID, "error", err)
	}
}

func sameDisplay(a, b model.LineItem) bool {
	return a.UnitPrice.Valid == b.UnitPrice.Valid &&
		a.Name == b.Name &&
		a.ImageRef == b.ImageRef &&
		a.Enrichment == b.Enrichment
}

// refresh は debouncer の表示変更や失敗を流す
func (e *CartEngine) refresh(failure *CommitFailure) {
	snap, version := e.store.current()
	e.hub.publish(snap, version, e.buildView(failure))
}

func (e *CartEngine) buildView(failure *CommitFailure) func(model.CartSnapshot) CartView {
	return func(snap model.CartSnapshot) CartView {
		return CartView{
			Snapshot:  snap,
			Totals:    ComputeTotals(snap),
			Displayed: e.debouncer.DisplayedAll(),
			Failure:   failure,
		}
	}
}

func validateLine(productID string, quantity int64) error {
	if productID == "" {
		return model.NewValidationError("product id is required")
	}
	if quantity < 1 {
		return model.NewValidationError("quantity must be at least 1")
	}
	return nil
}
