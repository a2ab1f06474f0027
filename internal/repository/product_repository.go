package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"stockroom/internal/domain"

	"github.com/google/uuid"
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error)
	Search(ctx context.Context, term string, limit int) ([]*domain.Product, error)
	ReplaceAll(ctx context.Context, products []*domain.Product) error
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, code, barcode, price, quantity, available, created_at, updated_at`

var validSortFields = map[string]bool{
	"name":       true,
	"code":       true,
	"price":      true,
	"quantity":   true,
	"created_at": true,
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Code,
		&product.Barcode,
		&product.Price,
		&product.Quantity,
		&product.Available,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	return product, err
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertProduct(ctx context.Context, db execer, product *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Code,
		product.Barcode,
		product.Price,
		product.Quantity,
		product.Available,
		product.CreatedAt,
		product.UpdatedAt,
	)
	return err
}

// Create inserts a single product
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := insertProduct(ctx, r.db, product); err != nil {
		return &domain.StorageError{Op: "create product", Err: err}
	}
	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "product", ID: id.String()}
		}
		return nil, &domain.StorageError{Op: "find product", Err: err}
	}

	return product, nil
}

// List pages through the catalog with whitelisted sorting
func (r *productRepository) List(ctx context.Context, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error) {
	if !validSortFields[sortBy] {
		sortBy = "name"
	}
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderAsc
	}
	if page < 1 {
		page = 1
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, &domain.StorageError{Op: "count products", Err: err}
	}

	offset := (page - 1) * pageSize

	// id breaks ties so pages stay stable
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		ORDER BY %s %s, id ASC
		LIMIT $1 OFFSET $2
	`, productColumns, sortBy, sortOrder)

	rows, err := r.db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, 0, &domain.StorageError{Op: "list products", Err: err}
	}

	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, &domain.StorageError{Op: "list products", Err: err}
	}

	return products, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches term as a case-insensitive substring of name, code or barcode.
// A blank term returns the first limit products.
func (r *productRepository) Search(ctx context.Context, term string, limit int) ([]*domain.Product, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if strings.TrimSpace(term) == "" {
		query := `SELECT ` + productColumns + ` FROM products ORDER BY name ASC, id ASC LIMIT $1`
		rows, err = r.db.QueryContext(ctx, query, limit)
	} else {
		pattern := "%" + likeEscaper.Replace(term) + "%"
		query := `
			SELECT ` + productColumns + `
			FROM products
			WHERE name ILIKE $1 OR code ILIKE $1 OR barcode ILIKE $1
			ORDER BY name ASC, id ASC
			LIMIT $2
		`
		rows, err = r.db.QueryContext(ctx, query, pattern, limit)
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "search products", Err: err}
	}

	products, err := collectProducts(rows)
	if err != nil {
		return nil, &domain.StorageError{Op: "search products", Err: err}
	}

	return products, nil
}

// ReplaceAll swaps the whole catalog for products in one transaction
func (r *productRepository) ReplaceAll(ctx context.Context, products []*domain.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StorageError{Op: "begin import", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return &domain.StorageError{Op: "clear products", Err: err}
	}

	for _, product := range products {
		if err := insertProduct(ctx, tx, product); err != nil {
			return &domain.StorageError{Op: "import product " + product.Name, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Op: "commit import", Err: err}
	}

	return nil
}

// UpdateQuantity records a stock count and returns the updated product
func (r *productRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error) {
	query := `
		UPDATE products
		SET quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id, quantity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "product", ID: id.String()}
		}
		return nil, &domain.StorageError{Op: "update product quantity", Err: err}
	}

	return product, nil
}
