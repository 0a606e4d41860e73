package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"gallery-store/internal/models"
	"gallery-store/internal/store"
	"gallery-store/internal/util"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
)

// AnalyticsService computes the admin dashboard reports
type AnalyticsService struct {
	store       store.Store
	revenueDays int
	now         func() time.Time
	logger      *zap.Logger
}

// NewAnalyticsService creates a new analytics service reporting revenue over revenueDays days
func NewAnalyticsService(store store.Store, revenueDays int) *AnalyticsService {
	if revenueDays < 1 {
		revenueDays = 7
	}
	return &AnalyticsService{
		store:       store,
		revenueDays: revenueDays,
		now:         time.Now,
		logger:      util.GetLogger(),
	}
}

// Revenue returns daily revenue for the last revenueDays days, oldest first, including today
func (s *AnalyticsService) Revenue(ctx context.Context) ([]models.RevenuePoint, error) {
	ctx, span := util.StartSpan(ctx, "AnalyticsService.Revenue")
	defer span.End()

	to := s.now().UTC()
	from := to.AddDate(0, 0, -(s.revenueDays - 1))
	return s.store.GetRevenueOverTime(ctx, from, to)
}

// OrderStatusBreakdown counts orders per status
func (s *AnalyticsService) OrderStatusBreakdown(ctx context.Context) ([]models.StatusCount, error) {
	ctx, span := util.StartSpan(ctx, "AnalyticsService.OrderStatusBreakdown")
	defer span.End()

	return s.store.GetOrderStatusBreakdown(ctx)
}

// Summary returns catalog and sales totals with the average order value
func (s *AnalyticsService) Summary(ctx context.Context) (*models.AnalyticsSummary, error) {
	ctx, span := util.StartSpan(ctx, "AnalyticsService.Summary")
	defer span.End()

	summary, err := s.store.GetAnalyticsSummary(ctx)
	if err != nil {
		return nil, err
	}

	summary.AverageOrderValue = decimal.Zero
	if summary.TotalOrders > 0 {
		summary.AverageOrderValue = summary.TotalRevenue.
			DivRound(decimal.NewFromInt(summary.TotalOrders), 2)
	}
	return summary, nil
}

// Export writes an xlsx workbook with the catalog and every order to w
func (s *AnalyticsService) Export(ctx context.Context, w io.Writer) error {
	ctx, span := util.StartSpan(ctx, "AnalyticsService.Export")
	defer span.End()

	products, err := s.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	orders, err := s.store.GetOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}

	file := xlsx.NewFile()

	productSheet, err := file.AddSheet("Products")
	if err != nil {
		return fmt.Errorf("failed to create products sheet: %w", err)
	}
	addHeader(productSheet, "ID", "Title", "Category", "Price", "Stock", "Available")
	for _, p := range products {
		row := productSheet.AddRow()
		row.AddCell().SetInt64(p.ID)
		row.AddCell().SetString(p.Title)
		row.AddCell().SetString(p.Category)
		row.AddCell().SetString(p.Price.StringFixed(2))
		row.AddCell().SetInt(p.StockQuantity)
		row.AddCell().SetBool(p.IsAvailable)
	}

	orderSheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("failed to create orders sheet: %w", err)
	}
	addHeader(orderSheet, "ID", "UserID", "Status", "TotalAmount", "CreatedAt")
	for _, o := range orders {
		row := orderSheet.AddRow()
		row.AddCell().SetInt64(o.ID)
		row.AddCell().SetInt64(o.UserID)
		row.AddCell().SetString(o.Status)
		row.AddCell().SetString(o.TotalAmount.StringFixed(2))
		row.AddCell().SetString(o.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Analytics exported",
		zap.Int("products", len(products)),
		zap.Int("orders", len(orders)))
	return nil
}

func addHeader(sheet *xlsx.Sheet, headers ...string) {
	row := sheet.AddRow()
	for _, h := range headers {
		row.AddCell().SetString(h)
	}
}
