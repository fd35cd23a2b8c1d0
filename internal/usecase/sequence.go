package usecase

import "sync/atomic"

// Sequencer は通信ごとに増え続ける番号を払い出す。
// 古いレスポンスを捨てる判定に使う。
type Sequencer struct {
	seq atomic.Int64
}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

func (s *Sequencer) Next() int64 {
	return s.seq.Add(1)
}

func (s *Sequencer) Current() int64 {
	return s.seq.Load()
}

// 永続化済みの番号より後ろから始める
func (s *Sequencer) AdvanceTo(n int64) {
	for {
		cur := s.seq.Load()
		if cur >= n || s.seq.CompareAndSwap(cur, n) {
			return
		}
	}
}
