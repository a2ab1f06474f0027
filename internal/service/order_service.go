package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockroom/internal/domain"
	"stockroom/internal/picking"
	"stockroom/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderMetrics receives order workflow events
type OrderMetrics interface {
	OrderSaved(created bool)
	OrderCompleted(mismatches int)
}

// maxIDAttempts bounds how many later milliseconds Save tries when an id is taken
const maxIDAttempts = 16

// Clock returns the current time
type Clock func() time.Time

// OrderService drives orders through Draft, Saved and Completed
type OrderService interface {
	NewDraft() *domain.Order
	Save(ctx context.Context, order *domain.Order) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error)
	StartPicking(ctx context.Context, id string) (picking.Session, error)
	Complete(ctx context.Context, id string, records []domain.PickRecord) (*domain.Order, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
	metrics   OrderMetrics
	logger    *zap.Logger
	now       Clock
}

// OrderOption customizes an OrderService
type OrderOption func(*orderService)

// WithClock replaces the wall clock used for ids and timestamps
func WithClock(clock Clock) OrderOption {
	return func(s *orderService) {
		s.now = clock
	}
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orderRepo repository.OrderRepository, metrics OrderMetrics, logger *zap.Logger, opts ...OrderOption) OrderService {
	s := &orderService{
		orderRepo: orderRepo,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDraft returns an empty order that exists only on the client until saved
func (s *orderService) NewDraft() *domain.Order {
	return domain.NewDraft()
}

// Save validates and persists order. Orders without an id are created with
// status Saved; existing ones have their customer name and lines replaced.
func (s *orderService) Save(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	customer, lines, err := normalizeOrder(order)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if order.ID == "" {
		created := &domain.Order{
			CustomerName: customer,
			Lines:        lines,
			Status:       domain.OrderStatusSaved,
			PickRecords:  []domain.PickRecord{},
			Date:         now,
			UpdatedAt:    now,
		}
		created.Total = created.ComputeTotal()

		if err := s.createWithFreshID(ctx, created); err != nil {
			return nil, err
		}

		s.metrics.OrderSaved(true)
		s.logger.Info("Order created",
			zap.String("order_id", created.ID),
			zap.Int("lines", len(created.Lines)),
			zap.String("total", created.Total.StringFixed(2)),
		)
		return created, nil
	}

	existing, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if !existing.Status.CanEdit() {
		return nil, &domain.AlreadyCompletedError{OrderID: existing.ID}
	}

	existing.CustomerName = customer
	existing.Lines = lines
	existing.Total = existing.ComputeTotal()
	existing.UpdatedAt = now

	if err := s.orderRepo.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.metrics.OrderSaved(false)
	s.logger.Info("Order updated",
		zap.String("order_id", existing.ID),
		zap.Int("lines", len(existing.Lines)),
		zap.String("total", existing.Total.StringFixed(2)),
	)
	return existing, nil
}

// createWithFreshID inserts order as ORDER-<millis>, moving to the next
// millisecond while the id is already held by another order
func (s *orderService) createWithFreshID(ctx context.Context, order *domain.Order) error {
	millis := order.Date.UnixMilli()
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		order.ID = fmt.Sprintf("ORDER-%d", millis+int64(attempt))

		err := s.orderRepo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrOrderIDTaken) {
			return err
		}
		s.logger.Debug("Order id taken, trying the next one", zap.String("order_id", order.ID))
	}
	return &domain.StorageError{Op: "create order", Err: fmt.Errorf("no free order id after %d attempts", maxIDAttempts)}
}

// normalizeOrder validates the client-editable part of an order and returns a
// copy of its lines with ids assigned and IsCustom derived
func normalizeOrder(order *domain.Order) (string, []domain.OrderLine, error) {
	if order == nil {
		return "", nil, domain.NewValidationError("order", "order is required")
	}

	customer := strings.TrimSpace(order.CustomerName)
	if customer == "" {
		return "", nil, domain.NewValidationError("customer_name", "customer name is required")
	}

	lines := make([]domain.OrderLine, 0, len(order.Lines))
	seen := make(map[string]bool, len(order.Lines))

	for i, line := range order.Lines {
		field := func(name string) string { return fmt.Sprintf("lines[%d].%s", i, name) }

		line.Name = strings.TrimSpace(line.Name)
		if line.Name == "" {
			return "", nil, domain.NewValidationError(field("name"), "name is required")
		}
		if line.Quantity <= 0 {
			return "", nil, domain.NewValidationError(field("quantity"), "quantity must be greater than 0")
		}
		if line.Price.IsNegative() {
			return "", nil, domain.NewValidationError(field("price"), "price must not be negative")
		}

		if line.ID == "" {
			line.ID = uuid.NewString()
		}
		if seen[line.ID] {
			return "", nil, domain.NewValidationError(field("id"), "duplicate line id")
		}
		seen[line.ID] = true

		line.IsCustom = line.ProductID == nil
		if line.IsCustom {
			line.ProductCode = ""
			line.Barcode = ""
		}

		lines = append(lines, line)
	}

	return customer, lines, nil
}

// Get retrieves an order by id
func (s *orderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, id)
}

// List returns orders newest first, filtered by status when given
func (s *orderService) List(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error) {
	if status != nil && !status.IsValid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", *status))
	}
	return s.orderRepo.List(ctx, status)
}

// StartPicking opens a picking pass over a saved order
func (s *orderService) StartPicking(ctx context.Context, id string) (picking.Session, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return picking.Session{}, err
	}
	if !order.Status.CanComplete() {
		return picking.Session{}, &domain.AlreadyCompletedError{OrderID: order.ID}
	}
	return picking.NewSession(order), nil
}

// Complete attaches the pick records to a saved order and closes it.
// Shortages are accepted and show up as mismatched records.
func (s *orderService) Complete(ctx context.Context, id string, records []domain.PickRecord) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanComplete() {
		return nil, &domain.AlreadyCompletedError{OrderID: order.ID}
	}

	normalized := make([]domain.PickRecord, 0, len(records))
	mismatches := 0
	for i, record := range records {
		line, ok := order.Line(record.LineID)
		if !ok {
			return nil, &domain.UnknownLineError{LineID: record.LineID}
		}
		if record.PickedQty < 0 {
			return nil, domain.NewValidationError(fmt.Sprintf("pick_records[%d].picked_qty", i), "picked quantity must not be negative")
		}
		if record.OriginalQty < 0 {
			return nil, domain.NewValidationError(fmt.Sprintf("pick_records[%d].original_qty", i), "original quantity must not be negative")
		}
		if record.OriginalQty > line.Quantity {
			return nil, domain.NewValidationError(fmt.Sprintf("pick_records[%d].original_qty", i), "original quantity exceeds the ordered quantity")
		}

		rec := domain.NewPickRecord(record.LineID, record.OriginalQty, record.PickedQty)
		if rec.Mismatch {
			mismatches++
		}
		normalized = append(normalized, rec)
	}

	completed, err := s.orderRepo.Complete(ctx, id, normalized, s.now())
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCompleted(mismatches)
	if mismatches > 0 {
		s.logger.Warn("Order completed with picking mismatches",
			zap.String("order_id", id),
			zap.Int("mismatches", mismatches),
			zap.Int("records", len(normalized)),
		)
	} else {
		s.logger.Info("Order completed", zap.String("order_id", id), zap.Int("records", len(normalized)))
	}

	return completed, nil
}
