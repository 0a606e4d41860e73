package worker

import (
	"context"
	"fmt"

	"gallery-store/internal/broker"
	"gallery-store/internal/models"
	"gallery-store/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventLog remembers which events were already handled
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// CacheInvalidator drops cached products
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, ids ...int64)
}

// Broadcaster pushes an event to live subscribers
type Broadcaster interface {
	Broadcast(v interface{}) error
}

// OrderEventWorker reacts to order events: it drops stale product cache entries and
// forwards every event to the admin live feed. Each event id is handled once.
type OrderEventWorker struct {
	events       EventLog
	products     CacheInvalidator
	live         Broadcaster
	eventHandler *broker.EventHandler
	consumer     *broker.Consumer
	logger       *zap.Logger
}

// NewOrderEventWorker creates a new order event worker. products and live may be nil.
func NewOrderEventWorker(events EventLog, products CacheInvalidator, live Broadcaster) *OrderEventWorker {
	w := &OrderEventWorker{
		events:       events,
		products:     products,
		live:         live,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	w.eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	return w
}

// HandleMessage processes one event message, skipping ids seen before
func (w *OrderEventWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	base, err := broker.DecodeBase(msg)
	if err != nil {
		return err
	}

	processed, err := w.events.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event %s: %w", base.EventID, err)
	}
	if processed {
		w.logger.Debug("Skipping duplicate event", zap.String("event_id", base.EventID))
		return nil
	}

	if err := w.eventHandler.HandleMessage(ctx, msg); err != nil {
		return err
	}

	if err := w.events.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		return fmt.Errorf("failed to mark event %s: %w", base.EventID, err)
	}
	util.EventsProcessedTotal.WithLabelValues(base.EventType).Inc()
	return nil
}

func (w *OrderEventWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	if w.products != nil {
		ids := make([]int64, 0, len(event.Items))
		for _, item := range event.Items {
			ids = append(ids, item.ProductID)
		}
		w.products.InvalidateCache(ctx, ids...)
	}

	w.logger.Info("Order placed",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.String("total", event.TotalAmount.StringFixed(2)))
	w.broadcast(event)
	return nil
}

func (w *OrderEventWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	w.logger.Info("Order status changed",
		zap.Int64("order_id", event.OrderID),
		zap.String("from", event.PreviousStatus),
		zap.String("to", event.Status))
	w.broadcast(event)
	return nil
}

func (w *OrderEventWorker) broadcast(event interface{}) {
	if w.live == nil {
		return
	}
	if err := w.live.Broadcast(event); err != nil {
		w.logger.Warn("Live broadcast failed", zap.Error(err))
	}
}

// Start consumes order events from Kafka until ctx is done
func (w *OrderEventWorker) Start(ctx context.Context, consumer *broker.Consumer) error {
	w.logger.Info("Starting order event worker")
	w.consumer = consumer
	return consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop closes the consumer, if any
func (w *OrderEventWorker) Stop() error {
	w.logger.Info("Stopping order event worker")
	if w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}
