package seed

import (
	"context"
	"testing"
	"time"

	"gallery-store/internal/auth"
	"gallery-store/internal/service"
	"gallery-store/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductsSeedsEmptyCatalogOnce(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	n, err := Products(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, len(SampleProducts()), n)

	n, err = Products(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)

	products, err := s.GetProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(SampleProducts()))
	for _, p := range products {
		assert.True(t, p.IsAvailable)
		assert.Positive(t, p.StockQuantity)
	}
}

func TestRunBootstrapsAdmin(t *testing.T) {
	s := store.NewMemoryStore()
	users := service.NewUserService(s, auth.NewTokenManager("secret", time.Hour))
	ctx := context.Background()

	require.NoError(t, Run(ctx, s, users, Options{AdminUsername: "curator", AdminPassword: "gallery-admin"}))

	admin, err := s.GetUserByUsername(ctx, "curator")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	_, err = users.Login(ctx, "curator", "gallery-admin")
	assert.NoError(t, err)
}

func TestRunWithoutAdminCredentials(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, Run(context.Background(), s, nil, Options{}))

	_, err := s.GetUserByUsername(context.Background(), "admin")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
