package service

import (
	"context"
	"math"
	"testing"

	"gallery-store/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartAddMergesLines(t *testing.T) {
	f := newFixture(t)
	cart := NewCartService(f.store, decimal.Zero)
	ctx := context.Background()

	_, err := cart.Add(ctx, f.shopper.ID, f.artwork.ID, 1)
	require.NoError(t, err)
	item, err := cart.Add(ctx, f.shopper.ID, f.artwork.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)

	lines, err := cart.Get(ctx, f.shopper.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, f.artwork.Title, lines[0].Product.Title)
}

func TestCartAddValidation(t *testing.T) {
	f := newFixture(t)
	cart := NewCartService(f.store, decimal.Zero)
	ctx := context.Background()

	_, err := cart.Add(ctx, f.shopper.ID, f.artwork.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "quantity", fieldErr.Field)

	_, err = cart.Add(ctx, f.shopper.ID, 999, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCartQuantityIsCapped(t *testing.T) {
	f := newFixture(t)
	cart := NewCartService(f.store, decimal.Zero)
	ctx := context.Background()

	_, err := cart.Add(ctx, f.shopper.ID, f.artwork.ID, MaxLineQuantity+1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = cart.Add(ctx, f.shopper.ID, f.artwork.ID, math.MaxInt)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = cart.Add(ctx, f.shopper.ID, f.artwork.ID, MaxLineQuantity)
	require.NoError(t, err)
	_, err = cart.Add(ctx, f.shopper.ID, f.artwork.ID, 2)
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "quantity", fieldErr.Field)

	_, err = cart.Update(ctx, f.shopper.ID, f.artwork.ID, MaxLineQuantity+1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	summary, err := cart.Summary(ctx, f.shopper.ID)
	require.NoError(t, err)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, MaxLineQuantity, summary.Items[0].Quantity)
	assert.Equal(t, "45500.00", summary.Subtotal.StringFixed(2))
}

func TestCartUpdateAndRemove(t *testing.T) {
	f := newFixture(t)
	cart := NewCartService(f.store, decimal.Zero)
	ctx := context.Background()

	_, err := cart.Update(ctx, f.shopper.ID, f.artwork.ID, 2)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = cart.Add(ctx, f.shopper.ID, f.artwork.ID, 1)
	require.NoError(t, err)

	item, err := cart.Update(ctx, f.shopper.ID, f.artwork.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)

	require.NoError(t, cart.Remove(ctx, f.shopper.ID, f.artwork.ID))
	require.NoError(t, cart.Remove(ctx, f.shopper.ID, f.artwork.ID))

	lines, err := cart.Get(ctx, f.shopper.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCartClearEmptiesCart(t *testing.T) {
	f := newFixture(t)
	cart := NewCartService(f.store, decimal.Zero)
	ctx := context.Background()
	other := f.addProduct(t, "Dune Study", "12.00", 3)

	_, err := cart.Add(ctx, f.shopper.ID, f.artwork.ID, 1)
	require.NoError(t, err)
	_, err = cart.Add(ctx, f.shopper.ID, other.ID, 1)
	require.NoError(t, err)

	require.NoError(t, cart.Clear(ctx, f.shopper.ID))

	lines, err := cart.Get(ctx, f.shopper.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCartSummarySkipsDeletedProducts(t *testing.T) {
	f := newFixture(t)
	cart := NewCartService(f.store, decimal.RequireFromString("5.00"))
	ctx := context.Background()
	gone := f.addProduct(t, "Withdrawn", "300.00", 1)

	_, err := cart.Add(ctx, f.shopper.ID, f.artwork.ID, 2)
	require.NoError(t, err)
	_, err = cart.Add(ctx, f.shopper.ID, gone.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteProduct(ctx, gone.ID))

	summary, err := cart.Summary(ctx, f.shopper.ID)
	require.NoError(t, err)

	assert.Len(t, summary.Items, 2)
	assert.Equal(t, 2, summary.ItemCount)
	assert.Equal(t, "91.00", summary.Subtotal.StringFixed(2))
	assert.Equal(t, "96.00", summary.Total.StringFixed(2))

	for _, line := range summary.Items {
		if line.ProductID == gone.ID {
			assert.Nil(t, line.Product)
		}
	}
}

func TestCartSummaryEmptyHasNoShipping(t *testing.T) {
	f := newFixture(t)
	cart := NewCartService(f.store, decimal.RequireFromString("5.00"))

	summary, err := cart.Summary(context.Background(), f.shopper.ID)
	require.NoError(t, err)
	assert.True(t, summary.Total.IsZero())
}

func TestCalculateSubtotal(t *testing.T) {
	f := newFixture(t)
	other := f.addProduct(t, "Dune Study", "12.25", 3)

	items, err := f.store.GetCartItems(context.Background(), f.shopper.ID)
	require.NoError(t, err)
	assert.True(t, calculateSubtotal(items, nil).IsZero())

	ctx := context.Background()
	_, err = f.store.AddCartItem(ctx, f.shopper.ID, f.artwork.ID, 2, MaxLineQuantity)
	require.NoError(t, err)
	_, err = f.store.AddCartItem(ctx, f.shopper.ID, other.ID, 3, MaxLineQuantity)
	require.NoError(t, err)
	_, err = f.store.AddCartItem(ctx, f.shopper.ID, 404, 7, MaxLineQuantity)
	require.NoError(t, err)

	items, err = f.store.GetCartItems(ctx, f.shopper.ID)
	require.NoError(t, err)
	products, err := f.store.GetProducts(ctx)
	require.NoError(t, err)

	// 2*45.50 + 3*12.25, the missing product adds nothing
	assert.Equal(t, "127.75", calculateSubtotal(items, indexProducts(products)).StringFixed(2))
}
