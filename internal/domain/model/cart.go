package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ローカルに持つカートの写し
// CartID=="" はカート未確定。
type CartSnapshot struct {
	CartID          string
	Items           map[string]LineItem
	AppliedSequence int64
	Generation      int64
}

func EmptySnapshot() CartSnapshot {
	return CartSnapshot{Items: map[string]LineItem{}}
}

// Clone は呼び出し側が自由に触れるコピーを返す。
func (s CartSnapshot) Clone() CartSnapshot {
	out := s
	out.Items = make(map[string]LineItem, len(s.Items))
	for id, it := range s.Items {
		out.Items[id] = it
	}
	return out
}

func (s CartSnapshot) HasCart() bool {
	return s.CartID != ""
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// productIdの昇順
func (s CartSnapshot) ProductIDs() []string {
	ids := make([]string, 0, len(s.Items))
	for id := range s.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// 数量の合計（バッジ表示用）
func (s CartSnapshot) ItemCount() int64 {
	var n int64
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// 0 は明細なし
func (s CartSnapshot) QuantityOf(productID string) int64 {
	return s.Items[productID].Quantity
}

// cart_states の1行（ローカル永続化用）
type CartState struct {
	Owner           string    `gorm:"primaryKey;type:varchar(255)" json:"owner"`
	CartID          string    `gorm:"type:varchar(255)" json:"cart_id"`
	AppliedSequence int64     `gorm:"not null" json:"applied_sequence"`
	Generation      int64     `gorm:"not null" json:"generation"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// UIの数量変更（debounce中でまだ送っていないもの）
type PendingMutation struct {
	ProductID       string
	TargetQuantity  int64
	RequestSequence int64
	Attempt         int
}

// サーバーが返したカート
type RemoteCart struct {
	CartID string
	Items  []RemoteItem
}

// 価格・名前は返ってこないこともある
type RemoteItem struct {
	ProductID string
	Quantity  int64
	UnitPrice decimal.NullDecimal
	Name      string
	ImageRef  string
}
