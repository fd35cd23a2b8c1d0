package usecase

import (
	"sync"

	"cartsync/internal/domain/model"
)

// CartView はUIへ流す読み取り専用の状態。
type CartView struct {
	Snapshot  model.CartSnapshot
	Totals    model.Totals
	Displayed map[string]int64 // 楽観表示中の数量
	Failure   *CommitFailure   // 直前の確定失敗（無ければnil）
}

// DisplayedQuantity は楽観表示を優先した数量
func (v CartView) DisplayedQuantity(productID string) int64 {
	if q, ok := v.Displayed[productID]; ok {
		return q
	}
	return v.Snapshot.QuantityOf(productID)
}

// 購読者ごとにmapを分ける
func (v CartView) copy() CartView {
	out := v
	out.Snapshot = v.Snapshot.Clone()
	out.Displayed = make(map[string]int64, len(v.Displayed))
	for id, q := range v.Displayed {
		out.Displayed[id] = q
	}
	out.Totals.Lines = append([]model.LineTotal(nil), v.Totals.Lines...)
	return out
}

// viewHub は購読者へ最新の CartView だけを届ける。
// 受信が遅い購読者には古い値を捨てて最新を入れる。
type viewHub struct {
	mu      sync.Mutex
	subs    map[int]chan CartView
	next    int
	last    CartView
	hasLast bool
	version int64
	closed  bool
}

func newViewHub() *viewHub {
	return &viewHub{subs: map[int]chan CartView{}}
}

func (h *viewHub) subscribe() (<-chan CartView, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan CartView, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	if h.hasLast {
		ch <- h.last.copy()
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// publish は version が古い写しを最新で置き換えてから配る
func (h *viewHub) publish(snap model.CartSnapshot, version int64, build func(model.CartSnapshot) CartView) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	if h.hasLast && version < h.version {
		snap = h.last.Snapshot
	} else {
		h.version = version
	}

	v := build(snap)
	for _, ch := range h.subs {
		v := v.copy()
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}

	// 失敗通知は一度だけ
	h.last = v
	h.last.Failure = nil
	h.hasLast = true
}

func (h *viewHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
