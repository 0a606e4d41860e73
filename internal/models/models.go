package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a store account. Admins manage the catalog and never shop.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"-"`
	IsAdmin  bool   `db:"is_admin" json:"isAdmin"`
}

// Product represents an artwork in the catalog
type Product struct {
	ID            int64           `db:"id" json:"id"`
	Title         string          `db:"title" json:"title"`
	Description   string          `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	ImageURL      string          `db:"image_url" json:"imageUrl"`
	Category      string          `db:"category" json:"category"`
	StockQuantity int             `db:"stock_quantity" json:"stockQuantity"`
	IsAvailable   bool            `db:"is_available" json:"isAvailable"`
}

// NormalizeAvailability hides products that are out of stock.
func (p *Product) NormalizeAvailability() {
	if p.StockQuantity <= 0 {
		p.StockQuantity = 0
		p.IsAvailable = false
	}
}

// CartItem is one line of a user's cart. There is at most one row per (user, product).
type CartItem struct {
	ID        int64 `db:"id" json:"id"`
	UserID    int64 `db:"user_id" json:"userId"`
	ProductID int64 `db:"product_id" json:"productId"`
	Quantity  int   `db:"quantity" json:"quantity"`
}

// Order represents a placed order
type Order struct {
	ID          int64           `db:"id" json:"id"`
	UserID      int64           `db:"user_id" json:"userId"`
	Status      string          `db:"status" json:"status"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"totalAmount"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// OrderItem snapshots a cart line at the time the order was placed
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"orderId"`
	ProductID int64           `db:"product_id" json:"productId"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// OtpCode is a one-time code issued to a user for a purpose.
// VerifiedAt is set when the code is consumed; OrderID is set when a verified
// checkout code is redeemed by an order.
type OtpCode struct {
	ID         int64      `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"userId"`
	Code       string     `db:"code" json:"-"`
	Purpose    string     `db:"purpose" json:"purpose"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expiresAt"`
	Used       bool       `db:"used" json:"used"`
	VerifiedAt *time.Time `db:"verified_at" json:"verifiedAt,omitempty"`
	OrderID    *int64     `db:"order_id" json:"orderId,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// OTP purposes
const (
	OTPPurposeCheckout     = "checkout"
	OTPPurposeRegistration = "registration"
)

// RevenuePoint is the revenue of a single day
type RevenuePoint struct {
	Name  string          `db:"name" json:"name"`
	Value decimal.Decimal `db:"value" json:"value"`
}

// StatusCount is the number of orders in a status
type StatusCount struct {
	Name  string `db:"name" json:"name"`
	Value int64  `db:"value" json:"value"`
}

// AnalyticsSummary aggregates catalog and sales totals
type AnalyticsSummary struct {
	TotalProducts     int64           `db:"total_products" json:"totalProducts"`
	TotalOrders       int64           `db:"total_orders" json:"totalOrders"`
	TotalRevenue      decimal.Decimal `db:"total_revenue" json:"totalRevenue"`
	AverageOrderValue decimal.Decimal `db:"-" json:"averageOrderValue"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
