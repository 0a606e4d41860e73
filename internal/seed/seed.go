package seed

import (
	"context"
	"fmt"

	"gallery-store/internal/models"
	"gallery-store/internal/store"
	"gallery-store/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdminEnsurer creates or resets the admin account
type AdminEnsurer interface {
	EnsureAdmin(ctx context.Context, username, password string) (*models.User, error)
}

// Options controls what Run seeds
type Options struct {
	AdminUsername string
	AdminPassword string
}

// SampleProducts returns the starter gallery catalog
func SampleProducts() []models.Product {
	return []models.Product{
		sample("Abstract Painting", "A beautiful abstract painting with vibrant colors",
			"95.99", "https://images.unsplash.com/photo-1541961017774-22349e4a1262", "painting", 5),
		sample("Ceramic Vase", "Handcrafted ceramic vase with unique patterns",
			"45.50", "https://images.unsplash.com/photo-1578913685467-ef49f9c224b4", "pottery", 8),
		sample("Wooden Sculpture", "Hand-carved wooden sculpture from sustainable wood",
			"120.00", "https://images.unsplash.com/photo-1513519245088-0e12902e5a38", "sculpture", 3),
		sample("Digital Art Print", "Limited edition digital art print, signed by the artist",
			"35.99", "https://images.unsplash.com/photo-1561839561-b13bcfe95249", "print", 15),
		sample("Glass Ornament", "Handblown glass ornament with delicate details",
			"28.50", "https://images.unsplash.com/photo-1576020886878-f8fc1a748678", "glass", 7),
		sample("Metal Wall Art", "Modern metal wall art, perfect for contemporary spaces",
			"75.00", "https://images.unsplash.com/photo-1572375992501-4b0892d50c69", "sculpture", 4),
	}
}

func sample(title, description, price, imageURL, category string, stock int) models.Product {
	return models.Product{
		Title:         title,
		Description:   description,
		Price:         decimal.RequireFromString(price),
		ImageURL:      imageURL,
		Category:      category,
		StockQuantity: stock,
		IsAvailable:   true,
	}
}

// Products inserts the sample catalog when the store has no products.
// It returns the number of products inserted.
func Products(ctx context.Context, s store.Store) (int, error) {
	logger := util.GetLogger()

	existing, err := s.GetProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list products: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("Catalog already has products, skipping seed", zap.Int("products", len(existing)))
		return 0, nil
	}

	inserted := 0
	for _, p := range SampleProducts() {
		p := p
		if err := s.CreateProduct(ctx, &p); err != nil {
			return inserted, fmt.Errorf("failed to insert %q: %w", p.Title, err)
		}
		inserted++
	}

	logger.Info("Catalog seeded", zap.Int("products", inserted))
	return inserted, nil
}

// Run seeds the catalog and, when credentials are set, the admin account
func Run(ctx context.Context, s store.Store, admins AdminEnsurer, opts Options) error {
	if _, err := Products(ctx, s); err != nil {
		return err
	}

	if opts.AdminUsername == "" || opts.AdminPassword == "" {
		util.GetLogger().Warn("Admin credentials not configured, skipping admin bootstrap")
		return nil
	}
	if _, err := admins.EnsureAdmin(ctx, opts.AdminUsername, opts.AdminPassword); err != nil {
		return fmt.Errorf("failed to ensure admin: %w", err)
	}
	return nil
}
