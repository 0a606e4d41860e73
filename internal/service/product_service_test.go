package service

import (
	"context"
	"testing"

	"gallery-store/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func TestProductCreateNormalizesAvailability(t *testing.T) {
	f := newFixture(t)
	products := NewProductService(f.store, nil)

	p, err := products.Create(context.Background(), &CreateProductRequest{
		Title:         "Night Ferry",
		Description:   "Oil on canvas",
		Price:         amount("1200.499"),
		ImageURL:      "/img/ferry.jpg",
		Category:      "paintings",
		StockQuantity: intPtr(0),
		IsAvailable:   boolPtr(true),
	})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.False(t, p.IsAvailable, "no stock means not available")
	assert.Equal(t, "1200.50", p.Price.StringFixed(2))
}

func TestProductCreateRejectsBadPrice(t *testing.T) {
	f := newFixture(t)
	products := NewProductService(f.store, nil)

	tests := []struct {
		name  string
		price *decimal.Decimal
	}{
		{"missing", nil},
		{"negative", amount("-1")},
		{"too large", amount("100000000")},
		{"too large once rounded", amount("99999999.995")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := products.Create(context.Background(), &CreateProductRequest{
				Title:         "x",
				Price:         tt.price,
				StockQuantity: intPtr(1),
				IsAvailable:   boolPtr(true),
			})
			var fieldErr *FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, "price", fieldErr.Field)
		})
	}
}

func TestProductPartialUpdate(t *testing.T) {
	f := newFixture(t)
	cache := newMapCache()
	products := NewProductService(f.store, cache)
	ctx := context.Background()

	updated, err := products.Update(ctx, f.artwork.ID, &UpdateProductRequest{
		Title:         strPtr("Starry Harbour II"),
		StockQuantity: intPtr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Starry Harbour II", updated.Title)
	assert.Equal(t, f.artwork.Description, updated.Description)
	assert.True(t, updated.Price.Equal(f.artwork.Price))
	assert.False(t, updated.IsAvailable)
	assert.Contains(t, cache.invalidated, f.artwork.ID)

	_, err = products.Update(ctx, 999, &UpdateProductRequest{Title: strPtr("x")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductGetReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	cache := newMapCache()
	products := NewProductService(f.store, cache)
	ctx := context.Background()

	p, err := products.Get(ctx, f.artwork.ID)
	require.NoError(t, err)
	assert.Equal(t, f.artwork.Title, p.Title)

	cached, err := cache.GetProduct(ctx, f.artwork.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)

	// served from cache while the store changes underneath
	stale := *f.artwork
	stale.Title = "changed directly"
	require.NoError(t, f.store.UpdateProduct(ctx, &stale))

	p, err = products.Get(ctx, f.artwork.ID)
	require.NoError(t, err)
	assert.Equal(t, f.artwork.Title, p.Title)

	products.InvalidateCache(ctx, f.artwork.ID)
	p, err = products.Get(ctx, f.artwork.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed directly", p.Title)

	_, err = products.Get(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductDeleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	products := NewProductService(f.store, newMapCache())
	ctx := context.Background()

	require.NoError(t, products.Delete(ctx, f.artwork.ID))
	require.NoError(t, products.Delete(ctx, f.artwork.ID))

	_, err := products.Get(ctx, f.artwork.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
