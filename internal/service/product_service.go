package service

import (
	"context"
	"fmt"

	"gallery-store/internal/models"
	"gallery-store/internal/store"
	"gallery-store/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductService handles catalog business logic
type ProductService struct {
	store  store.Store
	cache  ProductCache
	logger *zap.Logger
}

// NewProductService creates a new product service. A nil cache disables caching.
func NewProductService(store store.Store, cache ProductCache) *ProductService {
	return &ProductService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// CreateProductRequest represents a new catalog entry
type CreateProductRequest struct {
	Title         string           `json:"title" binding:"required,max=200"`
	Description   string           `json:"description" binding:"required,max=5000"`
	Price         *decimal.Decimal `json:"price" binding:"required"`
	ImageURL      string           `json:"imageUrl" binding:"required,max=2048"`
	Category      string           `json:"category" binding:"required,max=100"`
	StockQuantity *int             `json:"stockQuantity" binding:"required,min=0,max=1000000"`
	IsAvailable   *bool            `json:"isAvailable" binding:"required"`
}

// UpdateProductRequest is a partial update; nil fields are left unchanged
type UpdateProductRequest struct {
	Title         *string          `json:"title" binding:"omitempty,min=1,max=200"`
	Description   *string          `json:"description" binding:"omitempty,min=1,max=5000"`
	Price         *decimal.Decimal `json:"price"`
	ImageURL      *string          `json:"imageUrl" binding:"omitempty,min=1,max=2048"`
	Category      *string          `json:"category" binding:"omitempty,min=1,max=100"`
	StockQuantity *int             `json:"stockQuantity" binding:"omitempty,min=0,max=1000000"`
	IsAvailable   *bool            `json:"isAvailable"`
}

// List returns the whole catalog
func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.List")
	defer span.End()

	return s.store.GetProducts(ctx)
}

// Get returns one product, reading through the cache
func (s *ProductService) Get(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Get")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.GetProduct(ctx, id)
		if err != nil {
			s.logger.Warn("Product cache read failed", zap.Int64("product_id", id), zap.Error(err))
		} else if cached != nil {
			util.ProductCacheRequestsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		util.ProductCacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetProduct(ctx, product); err != nil {
			s.logger.Warn("Product cache write failed", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	return product, nil
}

// Create validates and stores a new product
func (s *ProductService) Create(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	if req.Price == nil {
		return nil, invalidField("price", "is required")
	}
	if err := validatePrice(*req.Price); err != nil {
		return nil, err
	}

	product := &models.Product{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price.Round(2),
		ImageURL:    req.ImageURL,
		Category:    req.Category,
	}
	if req.StockQuantity != nil {
		product.StockQuantity = *req.StockQuantity
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}
	product.NormalizeAvailability()

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("title", product.Title))
	return product, nil
}

// Update applies a partial update to a product
func (s *ProductService) Update(ctx context.Context, id int64, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update")
	defer span.End()

	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		product.Title = *req.Title
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			return nil, err
		}
		product.Price = req.Price.Round(2)
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.StockQuantity != nil {
		product.StockQuantity = *req.StockQuantity
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}
	product.NormalizeAvailability()

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	s.logger.Info("Product updated", zap.Int64("product_id", id))
	return product, nil
}

// Delete removes a product. Deleting a missing product succeeds.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "ProductService.Delete")
	defer span.End()

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	s.invalidate(ctx, id)

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

// InvalidateCache drops cached copies of the given products
func (s *ProductService) InvalidateCache(ctx context.Context, ids ...int64) {
	s.invalidate(ctx, ids...)
}

func (s *ProductService) invalidate(ctx context.Context, ids ...int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProduct(ctx, ids...); err != nil {
		s.logger.Warn("Product cache invalidation failed", zap.Int64s("product_ids", ids), zap.Error(err))
	}
}

var maxPrice = decimal.New(1, 8)

func validatePrice(price decimal.Decimal) error {
	price = price.Round(2)
	if price.IsNegative() {
		return invalidField("price", "must not be negative")
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return invalidField("price", "is too large")
	}
	return nil
}
