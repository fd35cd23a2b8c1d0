package usecase

import (
	"context"
	"sync"

	"cartsync/internal/domain/model"
	repo "cartsync/internal/repository"
)

// CartStore はカート写しの唯一の書き込み口。
// 読み取りも read-modify-write も mu で直列になる。
type CartStore struct {
	repo  repo.CartStateRepository
	owner string

	mu       sync.Mutex
	snap     model.CartSnapshot
	version  int64
	onChange func(snap model.CartSnapshot, version int64)
}

// DI
func NewCartStore(r repo.CartStateRepository, owner string) *CartStore {
	return &CartStore{
		repo:  r,
		owner: owner,
		snap:  model.EmptySnapshot(),
	}
}

// 変更通知先。ロック中に呼ばれるのでブロックしないこと
func (s *CartStore) OnChange(fn func(snap model.CartSnapshot, version int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// 永続化済みの写しをメモリへ読み込む
func (s *CartStore) Restore(ctx context.Context) (model.CartSnapshot, error) {
	loaded, err := s.repo.Load(ctx, s.owner)
	if err != nil {
		return s.Snapshot(), model.NewPersistenceError(err)
	}
	if loaded.Items == nil {
		loaded.Items = map[string]model.LineItem{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 前回失敗した明細はもう一度取りにいく
	for id, it := range loaded.Items {
		if it.Enrichment == model.EnrichmentFailed {
			it.Enrichment = model.EnrichmentPending
			loaded.Items[id] = it
		}
	}
	// 番号は戻さない
	if loaded.AppliedSequence < s.snap.AppliedSequence {
		loaded.AppliedSequence = s.snap.AppliedSequence
	}
	s.commitLocked(loaded)
	return loaded.Clone(), nil
}

func (s *CartStore) Snapshot() model.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

func (s *CartStore) current() (model.CartSnapshot, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone(), s.version
}

// Update は fn をロック中に実行し、変更があれば保存する。
// 保存に失敗してもメモリ側は新しい状態のまま PersistenceError を返す。
func (s *CartStore) Update(ctx context.Context, fn func(snap *model.CartSnapshot) (bool, error)) (model.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.snap.Clone()
	changed, err := fn(&work)
	if err != nil {
		return s.snap.Clone(), err
	}
	if !changed {
		return s.snap.Clone(), nil
	}

	s.commitLocked(work)
	if err := s.repo.Save(context.WithoutCancel(ctx), s.owner, work); err != nil {
		return work.Clone(), model.NewPersistenceError(err)
	}
	return work.Clone(), nil
}

// Reset はログアウト時に写しを消す。
// seq より前に出した要求の応答は古い扱いになる
func (s *CartStore) Reset(ctx context.Context, seq int64) (model.CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := model.EmptySnapshot()
	next.AppliedSequence = s.snap.AppliedSequence
	if seq > next.AppliedSequence {
		next.AppliedSequence = seq
	}
	next.Generation = s.snap.Generation
	s.commitLocked(next)

	if err := s.repo.Clear(context.WithoutCancel(ctx), s.owner); err != nil {
		return next.Clone(), model.NewPersistenceError(err)
	}
	return next.Clone(), nil
}

func (s *CartStore) commitLocked(next model.CartSnapshot) {
	s.snap = next
	s.version++
	if s.onChange != nil {
		s.onChange(next.Clone(), s.version)
	}
}
