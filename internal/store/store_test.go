package store

import (
	"context"
	"os"
	"testing"
	"time"

	"gallery-store/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	s, err := NewPostgresStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), "sqlite", "")
	assert.Error(t, err)
}

func TestPostgresCheckoutRoundTrip(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	user := &models.User{Username: "it-" + now.Format("150405.000000"), Password: "hash"}
	require.NoError(t, s.CreateUser(ctx, user))

	product := &models.Product{
		Title:         "Integration Print",
		Price:         decimal.RequireFromString("45.50"),
		StockQuantity: 2,
		IsAvailable:   true,
	}
	require.NoError(t, s.CreateProduct(ctx, product))
	defer s.DeleteProduct(ctx, product.ID)

	_, err := s.AddCartItem(ctx, user.ID, product.ID, 1, maxLine)
	require.NoError(t, err)
	item, err := s.AddCartItem(ctx, user.ID, product.ID, 1, maxLine)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)

	otp := &models.OtpCode{UserID: user.ID, Code: "123456", Purpose: models.OTPPurposeCheckout, ExpiresAt: now.Add(time.Minute), CreatedAt: now}
	require.NoError(t, s.CreateOTP(ctx, otp))

	var order models.Order
	err = s.RunInTx(ctx, func(tx Tx) error {
		claimed, err := tx.ConsumeOTP(ctx, user.ID, "123456", models.OTPPurposeCheckout, now)
		if err != nil {
			return err
		}
		order = models.Order{UserID: user.ID, Status: models.OrderStatusPending, TotalAmount: decimal.RequireFromString("91.00"), CreatedAt: now}
		if err := tx.CreateOrder(ctx, &order); err != nil {
			return err
		}
		if err := tx.UpdateProductStock(ctx, product.ID, 0, false); err != nil {
			return err
		}
		if err := tx.RedeemOTP(ctx, claimed.ID, order.ID); err != nil {
			return err
		}
		return tx.ClearCart(ctx, user.ID)
	})
	require.NoError(t, err)

	items, err := s.GetCartItems(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	orders, err := s.GetOrdersByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].TotalAmount.Equal(decimal.RequireFromString("91")))

	p, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, p.IsAvailable)
}
