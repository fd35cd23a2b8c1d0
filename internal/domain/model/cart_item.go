package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 価格・名前の解決状態
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "PENDING"
	EnrichmentResolved EnrichmentStatus = "RESOLVED"
	EnrichmentFailed   EnrichmentStatus = "FAILED"
)

// カートの明細
// UnitPrice.Valid=false は未解決（0円とは別物）。
type LineItem struct {
	ProductID  string
	Quantity   int64
	UnitPrice  decimal.NullDecimal
	Name       string
	ImageRef   string
	Enrichment EnrichmentStatus
}

// 価格と名前がそろっているか
func (i LineItem) IsResolved() bool {
	return i.UnitPrice.Valid && i.Name != ""
}

// 表示用フィールドだけ引き継ぐ
func (i LineItem) WithDisplayFrom(prev LineItem) LineItem {
	if !i.UnitPrice.Valid && prev.UnitPrice.Valid {
		i.UnitPrice = prev.UnitPrice
	}
	if i.Name == "" {
		i.Name = prev.Name
	}
	if i.ImageRef == "" {
		i.ImageRef = prev.ImageRef
	}
	return i
}

// 足りない項目だけ商品情報で埋める
func (i LineItem) FillFrom(p Product) LineItem {
	if !i.UnitPrice.Valid {
		i.UnitPrice = decimal.NewNullDecimal(p.Price)
	}
	if i.Name == "" {
		i.Name = p.Name
	}
	if i.ImageRef == "" {
		i.ImageRef = p.ImagePath
	}
	if i.IsResolved() {
		i.Enrichment = EnrichmentResolved
	}
	return i
}

// cart_lines の1行（ローカル永続化用）
type CartLine struct {
	ID         int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Owner      string           `gorm:"type:varchar(255);not null;index" json:"owner"`
	ProductID  string           `gorm:"type:varchar(255);not null" json:"product_id"`
	Quantity   int64            `gorm:"not null" json:"quantity"`
	UnitPrice  *string          `gorm:"type:text" json:"unit_price"`
	Name       string           `gorm:"type:varchar(255)" json:"name"`
	ImageRef   string           `gorm:"type:text" json:"image_ref"`
	Enrichment EnrichmentStatus `gorm:"type:varchar(20);not null" json:"enrichment"`
	CreatedAt  time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 明細 → 行
func NewCartLine(owner string, it LineItem) CartLine {
	line := CartLine{
		Owner:      owner,
		ProductID:  it.ProductID,
		Quantity:   it.Quantity,
		Name:       it.Name,
		ImageRef:   it.ImageRef,
		Enrichment: it.Enrichment,
	}
	if it.UnitPrice.Valid {
		s := it.UnitPrice.Decimal.String()
		line.UnitPrice = &s
	}
	return line
}

// 行 → 明細
func (l CartLine) ToLineItem() (LineItem, error) {
	it := LineItem{
		ProductID:  l.ProductID,
		Quantity:   l.Quantity,
		Name:       l.Name,
		ImageRef:   l.ImageRef,
		Enrichment: l.Enrichment,
	}
	if l.UnitPrice != nil {
		d, err := decimal.NewFromString(*l.UnitPrice)
		if err != nil {
			return LineItem{}, err
		}
		it.UnitPrice = decimal.NewNullDecimal(d)
	}
	if it.Enrichment == "" {
		it.Enrichment = EnrichmentPending
	}
	return it, nil
}
