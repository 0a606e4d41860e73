package service

import (
	"context"
	"sync"
	"testing"

	"gallery-store/internal/models"
	"gallery-store/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *store.MemoryStore
	shopper *models.User
	admin   *models.User
	artwork *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	shopper := &models.User{Username: "alice", Password: "hash"}
	require.NoError(t, s.CreateUser(ctx, shopper))
	admin := &models.User{Username: "admin", Password: "hash", IsAdmin: true}
	require.NoError(t, s.CreateUser(ctx, admin))

	artwork := &models.Product{
		Title:         "Starry Harbour",
		Description:   "Giclee print",
		Price:         decimal.RequireFromString("45.50"),
		ImageURL:      "/img/harbour.jpg",
		Category:      "prints",
		StockQuantity: 5,
		IsAvailable:   true,
	}
	require.NoError(t, s.CreateProduct(ctx, artwork))

	return &fixture{store: s, shopper: shopper, admin: admin, artwork: artwork}
}

func (f *fixture) addProduct(t *testing.T, title, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Title:         title,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsAvailable:   stock > 0,
	}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}

// failingStore injects an error into the cart clear step of a transaction
type failingStore struct {
	*store.MemoryStore
	clearErr error
}

func (s *failingStore) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.MemoryStore.RunInTx(ctx, func(tx store.Tx) error {
		return fn(&failingTx{Tx: tx, clearErr: s.clearErr})
	})
}

type failingTx struct {
	store.Tx
	clearErr error
}

func (t *failingTx) ClearCart(ctx context.Context, userID int64) error {
	return t.clearErr
}

type recordingPublisher struct {
	mu      sync.Mutex
	placed  []*models.OrderPlacedEvent
	changed []*models.OrderStatusChangedEvent
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, event)
	return nil
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, event)
	return nil
}

type mapCache struct {
	mu          sync.Mutex
	products    map[int64]models.Product
	invalidated []int64
}

func newMapCache() *mapCache {
	return &mapCache{products: map[int64]models.Product{}}
}

func (c *mapCache) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *mapCache) SetProduct(ctx context.Context, product *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = *product
	return nil
}

func (c *mapCache) InvalidateProduct(ctx context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.products, id)
	}
	c.invalidated = append(c.invalidated, ids...)
	return nil
}
