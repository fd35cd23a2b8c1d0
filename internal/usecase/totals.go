package usecase

import (
	"cartsync/internal/domain/model"

	"github.com/shopspring/decimal"
)

// ComputeTotals は価格が分かっている明細だけで小計を出す。
// 名前が未取得でも価格があれば小計に入る。価格の無い明細は HasUnresolvedItems で知らせる。
func ComputeTotals(snap model.CartSnapshot) model.Totals {
	t := model.Totals{
		Subtotal: decimal.Zero,
		Lines:    make([]model.LineTotal, 0, len(snap.Items)),
	}

	for _, id := range snap.ProductIDs() {
		it := snap.Items[id]
		t.ItemCount += it.Quantity

		line := model.LineTotal{ProductID: id, Quantity: it.Quantity}
		switch {
		case it.UnitPrice.Valid:
			amount := it.UnitPrice.Decimal.Mul(decimal.NewFromInt(it.Quantity))
			line.Status = model.EnrichmentResolved
			line.Amount = decimal.NewNullDecimal(amount)
			t.Subtotal = t.Subtotal.Add(amount)
			t.ResolvedCount++
		case it.Enrichment == model.EnrichmentFailed:
			line.Status = model.EnrichmentFailed
			t.FailedCount++
			t.HasUnresolvedItems = true
		default:
			line.Status = model.EnrichmentPending
			t.PendingCount++
			t.HasUnresolvedItems = true
		}
		t.Lines = append(t.Lines, line)
	}
	return t
}

// 配送料・税（請求画面）
type Pricing struct {
	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		DeliveryFee: decimal.NewFromInt(15000),
		TaxRate:     decimal.RequireFromString("0.1"),
	}
}

// Checkout は確定金額を出す。未解決の明細があるうちは出さない
func Checkout(t model.Totals, p Pricing) (model.CheckoutSummary, error) {
	if t.ItemCount == 0 {
		return model.CheckoutSummary{}, model.NewValidationError("cart is empty")
	}
	if t.HasUnresolvedItems {
		return model.CheckoutSummary{}, model.NewValidationError("cart has items without price")
	}

	tax := t.Subtotal.Mul(p.TaxRate)
	return model.CheckoutSummary{
		Subtotal:    t.Subtotal,
		DeliveryFee: p.DeliveryFee,
		Tax:         tax,
		Total:       t.Subtotal.Add(p.DeliveryFee).Add(tax),
	}, nil
}
