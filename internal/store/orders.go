package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gallery-store/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	orderColumns     = "id, user_id, status, total_amount, created_at"
	orderItemColumns = "id, order_id, product_id, quantity, price"
	otpColumns       = "id, user_id, code, purpose, expires_at, used, verified_at, order_id, created_at"
)

// pgTx is the checkout transaction over a sqlx.Tx
type pgTx struct {
	tx *sqlx.Tx
}

// GetCartItems retrieves the cart lines of a user inside the transaction
func (t *pgTx) GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return selectCartItems(ctx, t.tx, userID)
}

// ClearCart deletes the cart lines of a user inside the transaction
func (t *pgTx) ClearCart(ctx context.Context, userID int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}

// GetProductsForUpdate locks the given products in ascending id order
func (t *pgTx) GetProductsForUpdate(ctx context.Context, ids []int64) ([]models.Product, error) {
	return selectProductsByIDs(ctx, t.tx, ids, true)
}

// UpdateProductStock sets the stock and availability of a product
func (t *pgTx) UpdateProductStock(ctx context.Context, productID int64, stock int, available bool) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock_quantity = $1, is_available = $2 WHERE id = $3",
		stock, available, productID)
	if err != nil {
		return err
	}
	return expectRow(res, "product", productID)
}

// ConsumeOTP locks a valid unused code and marks it used
func (t *pgTx) ConsumeOTP(ctx context.Context, userID int64, code, purpose string, now time.Time) (*models.OtpCode, error) {
	var otp models.OtpCode
	err := t.tx.GetContext(ctx, &otp, `
		SELECT `+otpColumns+`
		FROM otp_codes
		WHERE user_id = $1 AND purpose = $2 AND code = $3 AND used = FALSE AND expires_at > $4
		ORDER BY id
		LIMIT 1
		FOR UPDATE`,
		userID, purpose, code, now)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("otp for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if _, err := t.tx.ExecContext(ctx,
		"UPDATE otp_codes SET used = TRUE, verified_at = $1 WHERE id = $2",
		now, otp.ID); err != nil {
		return nil, err
	}

	otp.Used = true
	otp.VerifiedAt = &now
	return &otp, nil
}

// ClaimVerifiedOTP locks the most recently verified code that is unexpired and unredeemed
func (t *pgTx) ClaimVerifiedOTP(ctx context.Context, userID int64, purpose string, now time.Time) (*models.OtpCode, error) {
	var otp models.OtpCode
	err := t.tx.GetContext(ctx, &otp, `
		SELECT `+otpColumns+`
		FROM otp_codes
		WHERE user_id = $1 AND purpose = $2 AND used = TRUE
			AND verified_at IS NOT NULL AND order_id IS NULL AND expires_at > $3
		ORDER BY verified_at DESC, id DESC
		LIMIT 1
		FOR UPDATE`,
		userID, purpose, now)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("verified otp for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &otp, nil
}

// RedeemOTP links a verified code to the order it confirmed
func (t *pgTx) RedeemOTP(ctx context.Context, otpID, orderID int64) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE otp_codes SET order_id = $1 WHERE id = $2 AND order_id IS NULL",
		orderID, otpID)
	if err != nil {
		return err
	}
	return expectRow(res, "otp", otpID)
}

// CreateOrder creates a new order
func (t *pgTx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, status, total_amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return t.tx.GetContext(ctx, &order.ID, query,
		order.UserID, order.Status, order.TotalAmount, order.CreatedAt)
}

// CreateOrderItem creates a new order item
func (t *pgTx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.Price)
}

// CreateOTP stores a freshly issued code
func (s *PostgresStore) CreateOTP(ctx context.Context, otp *models.OtpCode) error {
	query := `
		INSERT INTO otp_codes (user_id, code, purpose, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING id`

	return s.db.GetContext(ctx, &otp.ID, query,
		otp.UserID, otp.Code, otp.Purpose, otp.ExpiresAt, otp.CreatedAt)
}

// GetOrders retrieves all orders, newest first
func (s *PostgresStore) GetOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, id DESC")
	return orders, err
}

// GetOrderByID retrieves an order by ID
func (s *PostgresStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *PostgresStore) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *PostgresStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatus updates order status
func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2",
		status, orderID)
	if err != nil {
		return err
	}
	return expectRow(res, "order", orderID)
}

// IsEventProcessed checks if an event has been processed
func (s *PostgresStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *PostgresStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
