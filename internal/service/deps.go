package service

import (
	"context"
	"time"

	"gallery-store/internal/models"
)

// EventPublisher publishes order events after their transaction commits
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// ProductCache is a read-through cache of single products.
// GetProduct returns nil, nil on a miss.
type ProductCache interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	SetProduct(ctx context.Context, product *models.Product) error
	InvalidateProduct(ctx context.Context, ids ...int64) error
}

// Limiter decides whether one more event for key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// SessionRevoker remembers sessions ended by logout until their tokens expire
type SessionRevoker interface {
	RevokeSession(ctx context.Context, id string, until time.Time) error
	IsSessionRevoked(ctx context.Context, id string) (bool, error)
}
