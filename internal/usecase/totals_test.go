package usecase_test

import (
	"testing"

	"cartsync/internal/domain/model"
	"cartsync/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolved(id string, qty int64, price string) model.LineItem {
	return model.LineItem{
		ProductID:  id,
		Quantity:   qty,
		UnitPrice:  decimal.NewNullDecimal(decimal.RequireFromString(price)),
		Name:       "name-" + id,
		Enrichment: model.EnrichmentResolved,
	}
}

func snapshotOf(items ...model.LineItem) model.CartSnapshot {
	s := model.EmptySnapshot()
	s.CartID = "c1"
	for _, it := range items {
		s.Items[it.ProductID] = it
	}
	return s
}

// =====================
// ComputeTotals
// =====================

func TestComputeTotals_AllResolvedIsExact(t *testing.T) {
	snap := snapshotOf(resolved("a", 2, "50000"), resolved("b", 1, "30000"))

	got := usecase.ComputeTotals(snap)

	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(130000)), got.Subtotal.String())
	assert.False(t, got.HasUnresolvedItems)
	assert.Equal(t, int64(3), got.ItemCount)
	assert.Equal(t, 2, got.ResolvedCount)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "a", got.Lines[0].ProductID)
	assert.True(t, got.Lines[0].Amount.Decimal.Equal(decimal.NewFromInt(100000)))
}

func TestComputeTotals_DecimalHasNoFloatDrift(t *testing.T) {
	snap := snapshotOf(resolved("a", 3, "0.1"), resolved("b", 1, "0.2"))

	got := usecase.ComputeTotals(snap)

	assert.Equal(t, "0.5", got.Subtotal.String())
}

func TestComputeTotals_UnresolvedExcludedAndFlagged(t *testing.T) {
	pending := model.LineItem{ProductID: "p", Quantity: 4, Enrichment: model.EnrichmentPending}
	failed := model.LineItem{ProductID: "f", Quantity: 1, Enrichment: model.EnrichmentFailed}
	snap := snapshotOf(resolved("a", 1, "30000"), pending, failed)

	got := usecase.ComputeTotals(snap)

	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(30000)))
	assert.True(t, got.HasUnresolvedItems)
	assert.Equal(t, 1, got.ResolvedCount)
	assert.Equal(t, 1, got.PendingCount)
	assert.Equal(t, 1, got.FailedCount)
	assert.Equal(t, int64(6), got.ItemCount)

	byID := map[string]model.LineTotal{}
	for _, l := range got.Lines {
		byID[l.ProductID] = l
	}
	assert.False(t, byID["p"].Amount.Valid)
	assert.Equal(t, model.EnrichmentFailed, byID["f"].Status)
}

// 価格だけ分かっている明細は小計に入るが未解決のまま
func TestComputeTotals_PriceKnownNamePending(t *testing.T) {
	it := model.LineItem{
		ProductID:  "a",
		Quantity:   2,
		UnitPrice:  decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		Enrichment: model.EnrichmentPending,
	}

	failed := model.LineItem{
		ProductID:  "f",
		Quantity:   1,
		UnitPrice:  decimal.NewNullDecimal(decimal.NewFromInt(500)),
		Enrichment: model.EnrichmentFailed,
	}

	got := usecase.ComputeTotals(snapshotOf(it, failed))

	// 価格が分かっていれば小計に入り、状態も解決済み
	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(2500)))
	assert.False(t, got.HasUnresolvedItems)
	assert.Equal(t, 2, got.ResolvedCount)
	assert.Zero(t, got.PendingCount)
	assert.Zero(t, got.FailedCount)
	for _, l := range got.Lines {
		assert.Equal(t, model.EnrichmentResolved, l.Status, l.ProductID)
		assert.True(t, l.Amount.Valid, l.ProductID)
	}

	sum, err := usecase.Checkout(got, usecase.DefaultPricing())
	require.NoError(t, err)
	assert.True(t, sum.Subtotal.Equal(decimal.NewFromInt(2500)))
}

func TestComputeTotals_Empty(t *testing.T) {
	got := usecase.ComputeTotals(model.EmptySnapshot())

	assert.True(t, got.Subtotal.IsZero())
	assert.False(t, got.HasUnresolvedItems)
	assert.Empty(t, got.Lines)
}

// =====================
// Checkout
// =====================

func TestCheckout_AddsDeliveryFeeAndTax(t *testing.T) {
	totals := usecase.ComputeTotals(snapshotOf(resolved("a", 2, "50000"), resolved("b", 1, "30000")))

	sum, err := usecase.Checkout(totals, usecase.DefaultPricing())

	require.NoError(t, err)
	assert.True(t, sum.Subtotal.Equal(decimal.NewFromInt(130000)))
	assert.True(t, sum.DeliveryFee.Equal(decimal.NewFromInt(15000)))
	assert.True(t, sum.Tax.Equal(decimal.NewFromInt(13000)))
	assert.True(t, sum.Total.Equal(decimal.NewFromInt(158000)), sum.Total.String())
}

func TestCheckout_RefusesUnresolvedOrEmpty(t *testing.T) {
	pending := model.LineItem{ProductID: "p", Quantity: 1, Enrichment: model.EnrichmentPending}

	_, err := usecase.Checkout(usecase.ComputeTotals(snapshotOf(pending)), usecase.DefaultPricing())
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = usecase.Checkout(usecase.ComputeTotals(model.EmptySnapshot()), usecase.DefaultPricing())
	assert.ErrorIs(t, err, model.ErrValidation)
}
