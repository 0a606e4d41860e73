package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gallery-store/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

const (
	userColumns    = "id, username, password, is_admin"
	productColumns = "id, title, description, price, image_url, category, stock_quantity, is_available"
)

// PostgresStore is the durable Store backed by PostgreSQL
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new database store
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *PostgresStore) GetDB() *sqlx.DB {
	return s.db
}

// RunInTx runs fn inside a database transaction
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetUserByID retrieves a user by ID
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE username = $1", username)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a user
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db.GetContext(ctx, &user.ID,
		"INSERT INTO users (username, password, is_admin) VALUES ($1, $2, $3) RETURNING id",
		user.Username, user.Password, user.IsAdmin)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q: %w", user.Username, ErrDuplicate)
	}
	return err
}

// UpdateUser updates password and admin flag
func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password = $1, is_admin = $2 WHERE id = $3",
		user.Password, user.IsAdmin, user.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "user", user.ID)
}

// GetProducts retrieves all products
func (s *PostgresStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY id")
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *PostgresStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *PostgresStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	return selectProductsByIDs(ctx, s.db, ids, false)
}

func selectProductsByIDs(ctx context.Context, q sqlx.ExtContext, ids []int64, forUpdate bool) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query := "SELECT " + productColumns + " FROM products WHERE id IN (?) ORDER BY id"
	if forUpdate {
		query += " FOR UPDATE"
	}
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return nil, err
	}
	query = q.Rebind(query)

	products := []models.Product{}
	err = sqlx.SelectContext(ctx, q, &products, query, args...)
	return products, err
}

// CreateProduct inserts a product
func (s *PostgresStore) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (title, description, price, image_url, category, stock_quantity, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return s.db.GetContext(ctx, &p.ID, query,
		p.Title, p.Description, p.Price, p.ImageURL, p.Category, p.StockQuantity, p.IsAvailable)
}

// UpdateProduct overwrites every column of a product
func (s *PostgresStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET title = $1, description = $2, price = $3, image_url = $4,
			category = $5, stock_quantity = $6, is_available = $7
		WHERE id = $8`,
		p.Title, p.Description, p.Price, p.ImageURL, p.Category, p.StockQuantity, p.IsAvailable, p.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "product", p.ID)
}

// DeleteProduct deletes a product. Deleting a missing product is not an error.
func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	return err
}

func expectRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
