package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"gallery-store/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreFromDB(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresGetProductByIDNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetProductByID(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateUserDuplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("alice", "hash", false).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.CreateUser(context.Background(), &models.User{Username: "alice", Password: "hash"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddCartItemUpserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id, product_id)")).
		WithArgs(int64(1), int64(2), 3, 1000).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "product_id", "quantity"}).
			AddRow(10, 1, 2, 5))

	item, err := s.AddCartItem(context.Background(), 1, 2, 3, 1000)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddCartItemRejectsMergePastLimit(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE cart_items.quantity <= $4 - EXCLUDED.quantity")).
		WithArgs(int64(1), int64(2), 2, 1000).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "product_id", "quantity"}))

	_, err := s.AddCartItem(context.Background(), 1, 2, 2, 1000)
	assert.ErrorIs(t, err, ErrQuantityLimit)

	_, err = s.AddCartItem(context.Background(), 1, 2, 1001, 1000)
	assert.ErrorIs(t, err, ErrQuantityLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateOrderStatusMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1 WHERE id = $2")).
		WithArgs("shipped", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateOrderStatus(context.Background(), 9, "shipped")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunInTxConsumesOTP(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(int64(1), models.OTPPurposeCheckout, "123456", now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "code", "purpose", "expires_at", "used", "verified_at", "order_id", "created_at"}).
			AddRow(4, 1, "123456", models.OTPPurposeCheckout, now.Add(time.Minute), false, nil, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE otp_codes SET used = TRUE, verified_at = $1 WHERE id = $2")).
		WithArgs(now, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTx(context.Background(), func(tx Tx) error {
		otp, err := tx.ConsumeOTP(context.Background(), 1, "123456", models.OTPPurposeCheckout, now)
		if err != nil {
			return err
		}
		assert.True(t, otp.Used)
		assert.Equal(t, now, *otp.VerifiedAt)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunInTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectRollback()

	err := s.RunInTx(context.Background(), func(tx Tx) error {
		order := &models.Order{UserID: 1, Status: models.OrderStatusPending, TotalAmount: decimal.NewFromInt(91)}
		if err := tx.CreateOrder(context.Background(), order); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRevenueIsParameterised(t *testing.T) {
	s, mock := newMockStore(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta("generate_series($1::date, $2::date")).
		WithArgs("2024-03-01", "2024-03-02").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("2024-03-01", "0").
			AddRow("2024-03-02", "91.00"))

	points, err := s.GetRevenueOverTime(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, points[1].Value.Equal(decimal.RequireFromString("91")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
