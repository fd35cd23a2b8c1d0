package model

import "github.com/shopspring/decimal"

// 明細ごとの金額
// Amount.Valid=false は価格未解決で合計に入っていない。
type LineTotal struct {
	ProductID string
	Quantity  int64
	Status    EnrichmentStatus
	Amount    decimal.NullDecimal
}

// カート合計
type Totals struct {
	Subtotal           decimal.Decimal
	ItemCount          int64
	ResolvedCount      int
	PendingCount       int
	FailedCount        int
	HasUnresolvedItems bool
	Lines              []LineTotal
}

// 会計表示用
type CheckoutSummary struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}
