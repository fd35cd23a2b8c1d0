package model_test

import (
	"testing"

	"cartsync/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// CartSnapshot
// =====================

func TestCartSnapshot_CloneIsIndependent(t *testing.T) {
	snap := model.EmptySnapshot()
	snap.CartID = "cart-1"
	snap.Items["a"] = model.LineItem{ProductID: "a", Quantity: 1}

	cp := snap.Clone()
	cp.Items["a"] = model.LineItem{ProductID: "a", Quantity: 9}
	cp.Items["b"] = model.LineItem{ProductID: "b", Quantity: 1}

	assert.Equal(t, int64(1), snap.Items["a"].Quantity)
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, "cart-1", cp.CartID)
}

func TestCartSnapshot_Helpers(t *testing.T) {
	snap := model.EmptySnapshot()
	assert.False(t, snap.HasCart())
	assert.True(t, snap.IsEmpty())

	snap.CartID = "c"
	snap.Items["b"] = model.LineItem{ProductID: "b", Quantity: 2}
	snap.Items["a"] = model.LineItem{ProductID: "a", Quantity: 3}

	assert.True(t, snap.HasCart())
	assert.Equal(t, []string{"a", "b"}, snap.ProductIDs())
	assert.Equal(t, int64(5), snap.ItemCount())
	assert.Equal(t, int64(3), snap.QuantityOf("a"))
	assert.Equal(t, int64(0), snap.QuantityOf("zzz"))
}

// =====================
// LineItem
// =====================

func TestLineItem_FillFromOnlyFillsMissing(t *testing.T) {
	it := model.LineItem{
		ProductID:  "a",
		Quantity:   1,
		Name:       "fresher name",
		Enrichment: model.EnrichmentPending,
	}
	p := model.Product{ID: "a", Name: "catalog name", Price: decimal.NewFromInt(50000), ImagePath: "/a.jpg"}

	got := it.FillFrom(p)

	assert.Equal(t, "fresher name", got.Name)
	require.True(t, got.UnitPrice.Valid)
	assert.True(t, got.UnitPrice.Decimal.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "/a.jpg", got.ImageRef)
	assert.Equal(t, model.EnrichmentResolved, got.Enrichment)
}

func TestLineItem_WithDisplayFromKeepsRemoteValues(t *testing.T) {
	prev := model.LineItem{
		ProductID: "a",
		UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		Name:      "old",
		ImageRef:  "/old.jpg",
	}
	remote := model.LineItem{
		ProductID: "a",
		Quantity:  4,
		UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(12)),
	}

	got := remote.WithDisplayFrom(prev)

	assert.True(t, got.UnitPrice.Decimal.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, "old", got.Name)
	assert.Equal(t, "/old.jpg", got.ImageRef)
	assert.Equal(t, int64(4), got.Quantity)
}

func TestLineItem_UnresolvedPriceIsNotZero(t *testing.T) {
	it := model.LineItem{ProductID: "a", Quantity: 1, Name: "x"}
	assert.False(t, it.IsResolved())

	it.UnitPrice = decimal.NewNullDecimal(decimal.Zero)
	assert.True(t, it.IsResolved())
}

// =====================
// CartLine（永続化の行）
// =====================

func TestCartLine_RoundTripKeepsUnresolvedPrice(t *testing.T) {
	pending := model.LineItem{ProductID: "a", Quantity: 2, Enrichment: model.EnrichmentPending}
	line := model.NewCartLine("u1", pending)
	assert.Nil(t, line.UnitPrice)
	assert.Equal(t, "u1", line.Owner)

	back, err := line.ToLineItem()
	require.NoError(t, err)
	assert.False(t, back.UnitPrice.Valid)
	assert.Equal(t, model.EnrichmentPending, back.Enrichment)

	priced := model.LineItem{
		ProductID:  "b",
		Quantity:   1,
		UnitPrice:  decimal.NewNullDecimal(decimal.RequireFromString("49999.50")),
		Name:       "b",
		Enrichment: model.EnrichmentResolved,
	}
	back, err = model.NewCartLine("u1", priced).ToLineItem()
	require.NoError(t, err)
	assert.True(t, back.UnitPrice.Decimal.Equal(decimal.RequireFromString("49999.5")))
}

func TestCartLine_BadPriceFails(t *testing.T) {
	bad := "abc"
	_, err := model.CartLine{ProductID: "a", Quantity: 1, UnitPrice: &bad}.ToLineItem()
	assert.Error(t, err)
}

func TestCartLine_EmptyStatusIsPending(t *testing.T) {
	it, err := model.CartLine{ProductID: "a", Quantity: 1}.ToLineItem()
	require.NoError(t, err)
	assert.Equal(t, model.EnrichmentPending, it.Enrichment)
}

// =====================
// CustomerInfo
// =====================

func TestCustomerInfo_Validate(t *testing.T) {
	err := model.CustomerInfo{Name: " ", Phone: "090", Address: "HCM"}.Validate()
	assert.ErrorIs(t, err, model.ErrValidation)

	err = model.CustomerInfo{Name: "An", Phone: "", Address: "HCM"}.Validate()
	assert.ErrorIs(t, err, model.ErrValidation)

	err = model.CustomerInfo{Name: "An", Phone: "090", Address: ""}.Validate()
	assert.ErrorIs(t, err, model.ErrValidation)

	assert.NoError(t, model.CustomerInfo{Name: "An", Phone: "090", Address: "HCM"}.Validate())
}

func TestCustomerInfo_Notes(t *testing.T) {
	c := model.CustomerInfo{Name: " An ", Phone: "0901", Address: "1 Le Loi"}
	assert.Equal(t, "Order from app - An - 0901 - 1 Le Loi", c.Notes())

	c.Note = "no chili"
	assert.Equal(t, "Order from app - An - 0901 - 1 Le Loi - no chili", c.Notes())
}
