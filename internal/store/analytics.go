package store

import (
	"context"
	"time"

	"gallery-store/internal/models"
)

// GetRevenueOverTime returns one point per UTC day in [from, to], zero-filled
func (s *PostgresStore) GetRevenueOverTime(ctx context.Context, from, to time.Time) ([]models.RevenuePoint, error) {
	points := []models.RevenuePoint{}
	err := s.db.SelectContext(ctx, &points, `
		SELECT to_char(d.day, 'YYYY-MM-DD') AS name, COALESCE(SUM(o.total_amount), 0) AS value
		FROM generate_series($1::date, $2::date, INTERVAL '1 day') AS d(day)
		LEFT JOIN orders o ON (o.created_at AT TIME ZONE 'UTC')::date = d.day::date
		GROUP BY d.day
		ORDER BY d.day`,
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	return points, err
}

// GetOrderStatusBreakdown counts orders per status
func (s *PostgresStore) GetOrderStatusBreakdown(ctx context.Context) ([]models.StatusCount, error) {
	counts := []models.StatusCount{}
	err := s.db.SelectContext(ctx, &counts,
		"SELECT status AS name, COUNT(*) AS value FROM orders GROUP BY status ORDER BY status")
	return counts, err
}

// GetAnalyticsSummary returns catalog and sales totals
func (s *PostgresStore) GetAnalyticsSummary(ctx context.Context) (*models.AnalyticsSummary, error) {
	var summary models.AnalyticsSummary
	err := s.db.GetContext(ctx, &summary, `
		SELECT
			(SELECT COUNT(*) FROM products) AS total_products,
			(SELECT COUNT(*) FROM orders) AS total_orders,
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders) AS total_revenue`)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
