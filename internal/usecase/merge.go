package usecase

import "cartsync/internal/domain/model"

// mergeRemote はサーバーの応答を新しい写しにする。
// 数量と明細の有無はサーバーが正。表示項目は応答に無ければ productId で引き継ぐ。
func mergeRemote(prev model.CartSnapshot, remote model.RemoteCart, seq int64) model.CartSnapshot {
	next := model.CartSnapshot{
		CartID:          prev.CartID,
		Items:           make(map[string]model.LineItem, len(remote.Items)),
		AppliedSequence: seq,
		Generation:      prev.Generation,
	}
	if remote.CartID != "" {
		next.CartID = remote.CartID
	}

	for _, ri := range remote.Items {
		if ri.ProductID == "" || ri.Quantity < 1 {
			continue
		}
		it := model.LineItem{
			ProductID:  ri.ProductID,
			Quantity:   ri.Quantity,
			UnitPrice:  ri.UnitPrice,
			Name:       ri.Name,
			ImageRef:   ri.ImageRef,
			Enrichment: model.EnrichmentPending,
		}
		if old, ok := prev.Items[ri.ProductID]; ok {
			it = it.WithDisplayFrom(old)
			if old.Enrichment == model.EnrichmentFailed {
				it.Enrichment = model.EnrichmentFailed
			}
		}
		if it.IsResolved() {
			it.Enrichment = model.EnrichmentResolved
		}
		next.Items[ri.ProductID] = it
	}
	return next
}

// replaceFromRemote は load 用。世代を進めて失敗した明細を取り直す
func replaceFromRemote(prev model.CartSnapshot, remote model.RemoteCart, seq int64) model.CartSnapshot {
	next := mergeRemote(prev, remote, seq)
	next.Generation = prev.Generation + 1
	for id, it := range next.Items {
		if it.Enrichment == model.EnrichmentFailed {
			it.Enrichment = model.EnrichmentPending
			next.Items[id] = it
		}
	}
	return next
}

// clearedSnapshot はカートを空にした状態。cartId も消す
func clearedSnapshot(prev model.CartSnapshot, seq int64) model.CartSnapshot {
	next := model.EmptySnapshot()
	next.AppliedSequence = prev.AppliedSequence
	if seq > next.AppliedSequence {
		next.AppliedSequence = seq
	}
	next.Generation = prev.Generation
	return next
}
