package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"gallery-store/internal/models"
	"gallery-store/internal/store"
	"gallery-store/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	store          store.Store
	eventPublisher EventPublisher
	shippingFee    decimal.Decimal
	now            func() time.Time
	logger         *zap.Logger
}

// NewOrderService creates a new order service. A nil publisher disables events.
func NewOrderService(store store.Store, eventPublisher EventPublisher, shippingFee decimal.Decimal) *OrderService {
	return &OrderService{
		store:          store,
		eventPublisher: eventPublisher,
		shippingFee:    shippingFee,
		now:            time.Now,
		logger:         util.GetLogger(),
	}
}

// MaxOrderTotal is the largest total an order can carry
var MaxOrderTotal = decimal.RequireFromString("99999999.99")

// PlaceOrderRequest represents a request to place an order.
// TotalAmount is optional and only checked against the server-side total.
// Code, when present, is verified and consumed as part of the order.
type PlaceOrderRequest struct {
	TotalAmount *decimal.Decimal `json:"totalAmount"`
	Code        string           `json:"code" binding:"omitempty,len=6,numeric"`
}

// UpdateOrderStatusRequest represents an admin status change
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,min=1,max=32"`
}

// OrderDetails is an order with its line items
type OrderDetails struct {
	models.Order
	Items []models.OrderItem `json:"items"`
}

// PlaceOrder turns the cart of userID into an order. Confirming the checkout code,
// inserting the order and its items, decrementing stock and clearing the cart
// happen in one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, userID int64, req *PlaceOrderRequest) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder", attribute.Int64("user_id", userID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	now := s.now().UTC()
	var (
		details   *OrderDetails
		eventData []models.OrderItemData
	)

	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		otp, err := s.confirmCheckout(ctx, tx, userID, req.Code, now)
		if err != nil {
			return err
		}

		items, err := tx.GetCartItems(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		products, err := tx.GetProductsForUpdate(ctx, cartProductIDs(items))
		if err != nil {
			return fmt.Errorf("failed to lock products: %w", err)
		}
		byID := indexProducts(products)

		lines := make([]models.CartItem, 0, len(items))
		for _, item := range items {
			product, ok := byID[item.ProductID]
			if !ok {
				s.logger.Warn("Skipping cart line for deleted product",
					zap.Int64("user_id", userID),
					zap.Int64("product_id", item.ProductID))
				continue
			}
			if item.Quantity < 1 {
				return invalidField("quantity", fmt.Sprintf("cart line for %q has no units", product.Title))
			}
			if !product.IsAvailable || product.StockQuantity < item.Quantity {
				return fmt.Errorf("%w: %q has %d left", ErrInsufficientStock, product.Title, product.StockQuantity)
			}
			lines = append(lines, item)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		total := calculateSubtotal(lines, byID).Add(s.shippingFee).Round(2)
		if total.GreaterThan(MaxOrderTotal) {
			return invalidField("totalAmount", "order total is too large, split it into several orders")
		}
		if req.TotalAmount != nil && !req.TotalAmount.Round(2).Equal(total) {
			return fmt.Errorf("%w: expected %s", ErrTotalMismatch, total.StringFixed(2))
		}

		order := &models.Order{
			UserID:      userID,
			Status:      models.OrderStatusPending,
			TotalAmount: total,
			CreatedAt:   now,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		details = &OrderDetails{Order: *order, Items: make([]models.OrderItem, 0, len(lines))}
		eventData = make([]models.OrderItemData, 0, len(lines))
		for _, line := range lines {
			product := byID[line.ProductID]

			item := &models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     product.Price,
			}
			if err := tx.CreateOrderItem(ctx, item); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}

			remaining := product.StockQuantity - line.Quantity
			if err := tx.UpdateProductStock(ctx, product.ID, remaining, remaining > 0 && product.IsAvailable); err != nil {
				return fmt.Errorf("failed to update stock for product %d: %w", product.ID, err)
			}

			details.Items = append(details.Items, *item)
			eventData = append(eventData, models.OrderItemData{
				ProductID:      product.ID,
				Quantity:       line.Quantity,
				UnitPrice:      product.Price,
				RemainingStock: remaining,
			})
		}

		if err := tx.RedeemOTP(ctx, otp.ID, order.ID); err != nil {
			return fmt.Errorf("failed to redeem otp: %w", err)
		}

		if err := tx.ClearCart(ctx, userID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", details.ID),
		zap.Int64("user_id", userID),
		zap.String("total_amount", details.TotalAmount.StringFixed(2)))

	s.publishOrderPlaced(ctx, &details.Order, eventData)
	return details, nil
}

// confirmCheckout returns the checkout code backing this order, consuming code when given
func (s *OrderService) confirmCheckout(ctx context.Context, tx store.Tx, userID int64, code string, now time.Time) (*models.OtpCode, error) {
	if code != "" {
		otp, err := tx.ConsumeOTP(ctx, userID, code, models.OTPPurposeCheckout, now)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidOTP
		}
		if err != nil {
			return nil, fmt.Errorf("failed to consume otp: %w", err)
		}
		return otp, nil
	}

	otp, err := tx.ClaimVerifiedOTP(ctx, userID, models.OTPPurposeCheckout, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCheckoutNotVerified
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load verified otp: %w", err)
	}
	return otp, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidOTP), errors.Is(err, ErrCheckoutNotVerified):
		return "not_verified"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrTotalMismatch):
		return "total_mismatch"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "db_error"
	}
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order, items []models.OrderItemData) {
	if s.eventPublisher == nil {
		return
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}

	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

// GetUserOrders lists the orders of a user, newest first
func (s *OrderService) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetUserOrders")
	defer span.End()

	return s.store.GetOrdersByUserID(ctx, userID)
}

// GetOrder retrieves an order with its items. Shoppers only see their own orders.
func (s *OrderService) GetOrder(ctx context.Context, user *models.User, orderID int64) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin && order.UserID != user.ID {
		return nil, fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderDetails{Order: *order, Items: items}, nil
}

// ListOrders lists every order, newest first
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	return s.store.GetOrders(ctx)
}

// UpdateStatus sets the free-text status of an order
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus", attribute.Int64("order_id", orderID))
	defer span.End()

	if n := utf8.RuneCountInString(status); n < 1 || n > 32 {
		return nil, invalidField("status", "must be between 1 and 32 characters")
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	previous := order.Status

	if err := s.store.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	order.Status = status

	util.OrderStatusChangesTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", previous),
		zap.String("to", status))

	if s.eventPublisher != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: time.Now(),
			},
			OrderID:        order.ID,
			UserID:         order.UserID,
			PreviousStatus: previous,
			Status:         status,
		}
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event",
				zap.Int64("order_id", orderID),
				zap.Error(err))
		}
	}

	return order, nil
}
