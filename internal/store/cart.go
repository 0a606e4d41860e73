package store

import (
	"context"
	"database/sql"
	"fmt"

	"gallery-store/internal/models"

	"github.com/jmoiron/sqlx"
)

const cartColumns = "id, user_id, product_id, quantity"

func selectCartItems(ctx context.Context, q sqlx.QueryerContext, userID int64) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := sqlx.SelectContext(ctx, q, &items,
		"SELECT "+cartColumns+" FROM cart_items WHERE user_id = $1 ORDER BY id", userID)
	return items, err
}

// GetCartItems retrieves the cart lines of a user
func (s *PostgresStore) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return selectCartItems(ctx, s.db, userID)
}

// AddCartItem inserts a cart line or adds quantity to the existing one. The resulting
// line may hold at most maxQuantity units.
func (s *PostgresStore) AddCartItem(ctx context.Context, userID, productID int64, quantity, maxQuantity int) (*models.CartItem, error) {
	if quantity > maxQuantity {
		return nil, ErrQuantityLimit
	}

	var item models.CartItem
	err := s.db.GetContext(ctx, &item, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity <= $4 - EXCLUDED.quantity
		RETURNING `+cartColumns,
		userID, productID, quantity, maxQuantity)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cart item for product %d: %w", productID, ErrQuantityLimit)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateCartItem overwrites the quantity of a cart line
func (s *PostgresStore) UpdateCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"UPDATE cart_items SET quantity = $1 WHERE user_id = $2 AND product_id = $3 RETURNING "+cartColumns,
		quantity, userID, productID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cart item for product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveCartItem deletes a cart line. Removing a missing line is not an error.
func (s *PostgresStore) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2", userID, productID)
	return err
}

// ClearCart deletes all cart lines of a user
func (s *PostgresStore) ClearCart(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}
