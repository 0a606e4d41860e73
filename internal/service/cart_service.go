package service

import (
	"context"
	"errors"
	"fmt"

	"gallery-store/internal/models"
	"gallery-store/internal/store"
	"gallery-store/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService handles cart business logic
type CartService struct {
	store       store.Store
	shippingFee decimal.Decimal
	logger      *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store store.Store, shippingFee decimal.Decimal) *CartService {
	return &CartService{
		store:       store,
		shippingFee: shippingFee,
		logger:      util.GetLogger(),
	}
}

// MaxLineQuantity caps the units a single cart line can hold
const MaxLineQuantity = 1000

// AddToCartRequest represents a request to add a product to the cart
type AddToCartRequest struct {
	ProductID int64 `json:"productId" binding:"required,min=1"`
	Quantity  int   `json:"quantity" binding:"required,min=1,max=1000"`
}

// UpdateCartRequest represents a request to change the quantity of a cart line
type UpdateCartRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=1000"`
}

// CartLine is a cart item joined with its product. Product is nil when it was deleted.
type CartLine struct {
	models.CartItem
	Product *models.Product `json:"product"`
}

// CartSummary holds the priced cart
type CartSummary struct {
	Items       []CartLine      `json:"items"`
	ItemCount   int             `json:"itemCount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	Total       decimal.Decimal `json:"total"`
}

// Get returns the cart lines of a user joined with their products
func (s *CartService) Get(ctx context.Context, userID int64) ([]CartLine, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Get")
	defer span.End()

	items, err := s.store.GetCartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	products, err := s.store.GetProductsByIDs(ctx, cartProductIDs(items))
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}
	byID := indexProducts(products)

	lines := make([]CartLine, 0, len(items))
	for _, item := range items {
		line := CartLine{CartItem: item}
		if p, ok := byID[item.ProductID]; ok {
			p := p
			line.Product = &p
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Add puts quantity units of a product in the cart, merging with an existing line
func (s *CartService) Add(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}

	item, err := s.store.AddCartItem(ctx, userID, productID, quantity, MaxLineQuantity)
	if errors.Is(err, store.ErrQuantityLimit) {
		return nil, invalidField("quantity", fmt.Sprintf("cart cannot hold more than %d of one product", MaxLineQuantity))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("add").Inc()
	s.logger.Debug("Cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", item.Quantity))
	return item, nil
}

// Update overwrites the quantity of an existing cart line
func (s *CartService) Update(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Update")
	defer span.End()

	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	item, err := s.store.UpdateCartItem(ctx, userID, productID, quantity)
	if err != nil {
		return nil, err
	}

	util.CartOperationsTotal.WithLabelValues("update").Inc()
	return item, nil
}

// Remove deletes a cart line. Removing a line that does not exist succeeds.
func (s *CartService) Remove(ctx context.Context, userID, productID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Remove")
	defer span.End()

	if err := s.store.RemoveCartItem(ctx, userID, productID); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	return nil
}

// Clear empties the cart of a user
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	if err := s.store.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	return nil
}

// Summary prices the cart. Lines whose product no longer exists contribute nothing.
func (s *CartService) Summary(ctx context.Context, userID int64) (*CartSummary, error) {
	lines, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &CartSummary{
		Items:       lines,
		Subtotal:    decimal.Zero,
		ShippingFee: decimal.Zero,
	}
	for _, line := range lines {
		if line.Product == nil {
			continue
		}
		summary.ItemCount += line.Quantity
		summary.Subtotal = summary.Subtotal.Add(lineTotal(line.Product.Price, line.Quantity))
	}
	if summary.ItemCount > 0 {
		summary.ShippingFee = s.shippingFee
	}
	summary.Total = summary.Subtotal.Add(summary.ShippingFee).Round(2)
	return summary, nil
}

// calculateSubtotal sums quantity * price over the lines whose product exists
func calculateSubtotal(items []models.CartItem, products map[int64]models.Product) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		subtotal = subtotal.Add(lineTotal(product.Price, item.Quantity))
	}
	return subtotal
}

func lineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

func cartProductIDs(items []models.CartItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func indexProducts(products []models.Product) map[int64]models.Product {
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return invalidField("quantity", "must be at least 1")
	}
	if quantity > MaxLineQuantity {
		return invalidField("quantity", fmt.Sprintf("must be at most %d", MaxLineQuantity))
	}
	return nil
}
