package store

import (
	"context"
	"errors"
	"time"

	"gallery-store/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("already exists")
	// ErrQuantityLimit is returned when merging a cart line would pass its quantity cap
	ErrQuantityLimit = errors.New("quantity limit exceeded")
)

// Store is the persistence gateway used by the services.
// PostgresStore and MemoryStore implement it.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// RunInTx runs fn in a transaction. The transaction commits when fn returns nil
	// and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error

	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	AddCartItem(ctx context.Context, userID, productID int64, quantity, maxQuantity int) (*models.CartItem, error)
	UpdateCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error)
	RemoveCartItem(ctx context.Context, userID, productID int64) error
	ClearCart(ctx context.Context, userID int64) error

	CreateOTP(ctx context.Context, otp *models.OtpCode) error

	GetOrders(ctx context.Context) ([]models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error

	GetRevenueOverTime(ctx context.Context, from, to time.Time) ([]models.RevenuePoint, error)
	GetOrderStatusBreakdown(ctx context.Context) ([]models.StatusCount, error)
	GetAnalyticsSummary(ctx context.Context) (*models.AnalyticsSummary, error)

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Tx holds the operations of the checkout transaction.
// Rows read through the *ForUpdate and OTP methods stay locked until the transaction ends.
type Tx interface {
	GetCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	ClearCart(ctx context.Context, userID int64) error

	GetProductsForUpdate(ctx context.Context, ids []int64) ([]models.Product, error)
	UpdateProductStock(ctx context.Context, productID int64, stock int, available bool) error

	// ConsumeOTP marks a valid unused code as used and verified at now.
	// It returns ErrNotFound when no such code exists.
	ConsumeOTP(ctx context.Context, userID int64, code, purpose string, now time.Time) (*models.OtpCode, error)
	// ClaimVerifiedOTP locks the latest verified, unexpired code not yet redeemed by an order.
	ClaimVerifiedOTP(ctx context.Context, userID int64, purpose string, now time.Time) (*models.OtpCode, error)
	RedeemOTP(ctx context.Context, otpID, orderID int64) error

	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
}

// Open creates the store selected by driver ("postgres" or "memory")
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres", "":
		s, err := NewPostgresStore(databaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
