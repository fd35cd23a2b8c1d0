package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cartsync/internal/domain/model"
	"cartsync/internal/gateway"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

type EnricherOptions struct {
	MaxAttempts    int           // 1回の取得で試す回数
	RetryDelay     time.Duration // 失敗後の待ち
	AttemptTimeout time.Duration // 1回の通信の上限
	Concurrency    int           // 同時取得数
	RPS            float64       // 0以下なら無制限
	Logger         *slog.Logger
}

func DefaultEnricherOptions() EnricherOptions {
	return EnricherOptions{
		MaxAttempts:    3,
		RetryDelay:     time.Second,
		AttemptTimeout: 10 * time.Second,
		Concurrency:    4,
		RPS:            10,
	}
}

// Enricher は明細に足りない価格・名前・画像を商品APIから取る。
// 取れた商品はメモリにキャッシュする。
type Enricher struct {
	catalog gateway.CatalogGateway
	opts    EnricherOptions
	log     *slog.Logger

	group   singleflight.Group
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	mu    sync.RWMutex
	cache map[string]model.Product
}

// DI
func NewEnricher(catalog gateway.CatalogGateway, opts EnricherOptions) *Enricher {
	def := DefaultEnricherOptions()
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = def.AttemptTimeout
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = def.Concurrency
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Enricher{
		catalog: catalog,
		opts:    opts,
		log:     log,
		sem:     semaphore.NewWeighted(int64(opts.Concurrency)),
		limiter: rate.NewLimiter(limit, opts.Concurrency),
		cache:   map[string]model.Product{},
	}
}

func (e *Enricher) Cached(productID string) (model.Product, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.cache[productID]
	return p, ok
}

// キャッシュを捨てる（ログアウト時）
func (e *Enricher) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = map[string]model.Product{}
}

// Forget は取得中の呼び出しとの相乗りをやめる。
// 次の Resolve は前の結果を待たずに最初から試す
func (e *Enricher) Forget(productID string) {
	e.group.Forget(productID)
}

// Resolve は商品情報を返す。失敗時は MaxAttempts 回まで RetryDelay 間隔で再試行する。
// 同じ商品への同時呼び出しは1本にまとめる。
func (e *Enricher) Resolve(ctx context.Context, productID string) (model.Product, error) {
	if p, ok := e.Cached(productID); ok {
		return p, nil
	}

	v, err, _ := e.group.Do(productID, func() (interface{}, error) {
		return e.fetchWithRetry(ctx, productID)
	})
	if err != nil {
		return model.Product{}, err
	}
	return v.(model.Product), nil
}

func (e *Enricher) fetchWithRetry(ctx context.Context, productID string) (model.Product, error) {
	var lastErr error

	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		p, err := e.fetchOnce(ctx, productID)
		if err == nil {
			e.mu.Lock()
			e.cache[productID] = p
			e.mu.Unlock()
			return p, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return model.Product{}, ctx.Err()
		}
		//無い商品・期限切れは何度やっても同じ
		if model.IsKind(err, model.KindNotFound) || model.IsKind(err, model.KindAuthExpired) {
			break
		}

		e.log.Warn("product lookup failed",
			"product_id", productID, "attempt", attempt, "max_attempts", e.opts.MaxAttempts, "error", err)

		if attempt < e.opts.MaxAttempts {
			if err := sleepContext(ctx, e.opts.RetryDelay); err != nil {
				return model.Product{}, err
			}
		}
	}
	return model.Product{}, lastErr
}

func (e *Enricher) fetchOnce(ctx context.Context, productID string) (model.Product, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return model.Product{}, err
	}
	defer e.sem.Release(1)

	if err := e.limiter.Wait(ctx); err != nil {
		return model.Product{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, e.opts.AttemptTimeout)
	defer cancel()

	p, err := e.catalog.GetProduct(cctx, productID)
	if err != nil {
		if _, ok := model.AsCartError(err); !ok {
			err = model.NewNetworkError("get product", err)
		}
		return model.Product{}, err
	}
	if p.ID == "" {
		p.ID = productID
	}
	return p, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
