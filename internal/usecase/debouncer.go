package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cartsync/internal/domain/model"
)

type DebounceState int

const (
	DebounceIdle DebounceState = iota
	DebouncePendingCommit
	DebounceCommitting
	DebounceRollingBack
)

func (s DebounceState) String() string {
	switch s {
	case DebouncePendingCommit:
		return "PENDING_COMMIT"
	case DebounceCommitting:
		return "COMMITTING"
	case DebounceRollingBack:
		return "ROLLING_BACK"
	}
	return "IDLE"
}

// 数量を確定させる先（CartEngine.SetQuantity）
type QuantityCommitter interface {
	SetQuantity(ctx context.Context, productID string, quantity int64) (model.CartSnapshot, error)
}

// CommitFailure は確定に失敗して表示を戻したことを伝える。
type CommitFailure struct {
	ProductID    string
	Target       int64
	RolledBackTo int64
	Err          error
}

type debounceEntry struct {
	state     DebounceState
	displayed int64
	committed int64
	created   int64 // 作成時の token
	applied   int64 // committed を決めた token
	token     int64 // 最新の変更
	attempt   int
	timer     *time.Timer
}

// Debouncer は productId ごとに数量変更をまとめて1回だけ送る。
// 表示値はすぐ変え、失敗したら最後に確定した値へ戻す。
type Debouncer struct {
	committer QuantityCommitter
	current   func() model.CartSnapshot
	delay     time.Duration
	log       *slog.Logger
	notify    func(*CommitFailure)

	mu      sync.Mutex
	entries map[string]*debounceEntry
	seq     int64
	closed  bool
}

// DI
// current は確定済みの数量を読むため。notify はロック外で呼ぶ。
func NewDebouncer(committer QuantityCommitter, current func() model.CartSnapshot, delay time.Duration, log *slog.Logger, notify func(*CommitFailure)) *Debouncer {
	if log == nil {
		log = slog.Default()
	}
	if notify == nil {
		notify = func(*CommitFailure) {}
	}
	return &Debouncer{
		committer: committer,
		current:   current,
		delay:     delay,
		log:       log,
		notify:    notify,
		entries:   map[string]*debounceEntry{},
	}
}

// Change はUIの数量変更を受け付ける。1未満は通信せずに弾く
func (d *Debouncer) Change(productID string, quantity int64) error {
	if productID == "" {
		return model.NewValidationError("product id is required")
	}
	if quantity < 1 {
		return model.NewValidationError("quantity must be at least 1")
	}

	// ストアのロックを先に済ませる
	committedNow := d.current().QuantityOf(productID)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return model.NewValidationError("cart is closed")
	}

	d.seq++
	token := d.seq

	e, ok := d.entries[productID]
	if !ok {
		e = &debounceEntry{state: DebounceIdle, committed: committedNow, created: token}
		d.entries[productID] = e
	}
	if e.timer != nil {
		e.timer.Stop()
	}

	e.token = token
	e.displayed = quantity
	e.state = DebouncePendingCommit
	e.timer = time.AfterFunc(d.delay, func() { d.fire(productID, token) })
	d.mu.Unlock()

	d.notify(nil)
	return nil
}

func (d *Debouncer) fire(productID string, token int64) {
	d.mu.Lock()
	e, ok := d.entries[productID]
	if !ok || d.closed || e.token != token || e.state != DebouncePendingCommit {
		d.mu.Unlock()
		return
	}
	e.state = DebounceCommitting
	e.attempt++
	e.timer = nil
	pm := model.PendingMutation{
		ProductID:       productID,
		TargetQuantity:  e.displayed,
		RequestSequence: token,
		Attempt:         e.attempt,
	}
	d.mu.Unlock()

	d.log.Debug("committing quantity",
		"product_id", pm.ProductID, "quantity", pm.TargetQuantity, "request_seq", pm.RequestSequence, "attempt", pm.Attempt)

	snap, err := d.committer.SetQuantity(context.Background(), pm.ProductID, pm.TargetQuantity)

	d.mu.Lock()
	e, ok = d.entries[productID]
	if !ok || e.created > token {
		// 取り消し済み
		d.mu.Unlock()
		return
	}

	var failure *CommitFailure
	if err == nil {
		if token > e.applied {
			e.committed = snap.QuantityOf(productID)
			e.applied = token
		}
		if e.token == token {
			delete(d.entries, productID)
		}
	} else {
		failure = &CommitFailure{ProductID: productID, Target: pm.TargetQuantity, RolledBackTo: e.committed, Err: err}
		if e.token == token {
			e.state = DebounceRollingBack
			e.displayed = e.committed
			delete(d.entries, productID)
		}
	}
	d.mu.Unlock()

	if failure != nil {
		d.log.Warn("quantity commit failed, rolled back",
			"product_id", productID, "target", failure.Target, "rolled_back_to", failure.RolledBackTo, "error", err)
	}
	d.notify(failure)
}

// Cancel は削除時に使う。待機中のタイマーを止める
func (d *Debouncer) Cancel(productID string) {
	d.mu.Lock()
	e, ok := d.entries[productID]
	if ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(d.entries, productID)
	}
	d.mu.Unlock()

	if ok {
		d.notify(nil)
	}
}

func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	n := d.cancelAllLocked()
	d.mu.Unlock()

	if n > 0 {
		d.notify(nil)
	}
}

// Close 後の変更は受け付けない。送信済みの確定は最後まで走る
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.cancelAllLocked()
	d.mu.Unlock()
}

func (d *Debouncer) cancelAllLocked() int {
	n := len(d.entries)
	for id, e := range d.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(d.entries, id)
	}
	return n
}

// Displayed は楽観表示中の数量。無ければ false
func (d *Debouncer) Displayed(productID string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[productID]
	if !ok {
		return 0, false
	}
	return e.displayed, true
}

func (d *Debouncer) DisplayedAll() map[string]int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int64, len(d.entries))
	for id, e := range d.entries {
		out[id] = e.displayed
	}
	return out
}

func (d *Debouncer) State(productID string) DebounceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[productID]; ok {
		return e.state
	}
	return DebounceIdle
}

// Pending は送信待ちの変更一覧
func (d *Debouncer) Pending() []model.PendingMutation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.PendingMutation, 0, len(d.entries))
	for id, e := range d.entries {
		if e.state != DebouncePendingCommit {
			continue
		}
		out = append(out, model.PendingMutation{
			ProductID:       id,
			TargetQuantity:  e.displayed,
			RequestSequence: e.token,
			Attempt:         e.attempt,
		})
	}
	return out
}
