package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockroom/internal/domain"
)

// ErrOrderIDTaken is returned by Create when another order already holds the id
var ErrOrderIDTaken = errors.New("order id already taken")

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error)
	Complete(ctx context.Context, id string, records []domain.PickRecord, completedAt time.Time) (*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, customer_name, items, total, status, pick_records, date, updated_at, completed_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order       domain.Order
		items       []byte
		pickRecords []byte
		completedAt sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.CustomerName,
		&items,
		&order.Total,
		&order.Status,
		&pickRecords,
		&order.Date,
		&order.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode order lines: %w", err)
	}
	if err := json.Unmarshal(pickRecords, &order.PickRecords); err != nil {
		return nil, fmt.Errorf("failed to decode pick records: %w", err)
	}
	if order.Lines == nil {
		order.Lines = []domain.OrderLine{}
	}
	if completedAt.Valid {
		t := completedAt.Time
		order.CompletedAt = &t
	}

	return &order, nil
}

func marshalLines(lines []domain.OrderLine) ([]byte, error) {
	if lines == nil {
		lines = []domain.OrderLine{}
	}
	return json.Marshal(lines)
}

func marshalRecords(records []domain.PickRecord) ([]byte, error) {
	if records == nil {
		records = []domain.PickRecord{}
	}
	return json.Marshal(records)
}

// Create inserts a newly saved order
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	items, err := marshalLines(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode order lines: %w", err)
	}
	records, err := marshalRecords(order.PickRecords)
	if err != nil {
		return fmt.Errorf("failed to encode pick records: %w", err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.CustomerName,
		items,
		order.Total,
		string(order.Status),
		records,
		order.Date,
		order.UpdatedAt,
		order.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrOrderIDTaken
		}
		return &domain.StorageError{Op: "create order", Err: err}
	}

	return nil
}

// Update overwrites the customer name, lines and total of an order that is
// not completed. The status column is never written here.
func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	items, err := marshalLines(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode order lines: %w", err)
	}

	query := `
		UPDATE orders
		SET customer_name = $2, items = $3, total = $4, updated_at = $5
		WHERE id = $1 AND status <> 'Completed'
	`

	result, err := r.db.ExecContext(ctx, query, order.ID, order.CustomerName, items, order.Total, order.UpdatedAt)
	if err != nil {
		return &domain.StorageError{Op: "update order", Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &domain.StorageError{Op: "update order", Err: err}
	}

	if rowsAffected == 0 {
		return r.explainNoop(ctx, order.ID)
	}

	return nil
}

// FindByID retrieves an order by ID
func (r *orderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "order", ID: id}
		}
		return nil, &domain.StorageError{Op: "find order", Err: err}
	}

	return order, nil
}

// List returns orders newest first, optionally restricted to one status
func (r *orderRepository) List(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if status != nil {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY date DESC, id DESC`
		rows, err = r.db.QueryContext(ctx, query, string(*status))
	} else {
		query := `SELECT ` + orderColumns + ` FROM orders ORDER BY date DESC, id DESC`
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "list orders", Err: err}
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "scan order", Err: err}
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list orders", Err: err}
	}

	return orders, nil
}

// Complete attaches pick records and moves the order to Completed. Only one
// of several racing calls succeeds; the others get AlreadyCompletedError.
func (r *orderRepository) Complete(ctx context.Context, id string, records []domain.PickRecord, completedAt time.Time) (*domain.Order, error) {
	payload, err := marshalRecords(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pick records: %w", err)
	}

	query := `
		UPDATE orders
		SET status = 'Completed', pick_records = $2, completed_at = $3, updated_at = $3
		WHERE id = $1 AND status <> 'Completed'
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, payload, completedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.explainNoop(ctx, id)
		}
		return nil, &domain.StorageError{Op: "complete order", Err: err}
	}

	return order, nil
}

// explainNoop tells apart a missing order from a completed one after a
// guarded update touched no rows
func (r *orderRepository) explainNoop(ctx context.Context, id string) error {
	var status domain.OrderStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.NotFoundError{Resource: "order", ID: id}
		}
		return &domain.StorageError{Op: "check order status", Err: err}
	}
	return &domain.AlreadyCompletedError{OrderID: id}
}
