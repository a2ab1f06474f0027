package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"stockroom/internal/domain"
	"stockroom/internal/repository"

	"github.com/google/uuid"
)

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	users := make([]*domain.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (m *mockUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*domain.User, error) {
	user, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

func (m *mockUserRepository) Count(ctx context.Context) (int, error) {
	return len(m.users), nil
}

type mockSessionRepository struct {
	sessions map[string]*domain.Session
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{sessions: make(map[string]*domain.Session)}
}

func (m *mockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.sessions[session.Token] = session
	return nil
}

func (m *mockSessionRepository) FindByToken(ctx context.Context, token string) (*domain.Session, error) {
	session, exists := m.sessions[token]
	if !exists {
		return nil, repository.ErrSessionNotFound
	}
	if session.Revoked {
		return nil, repository.ErrSessionRevoked
	}
	return session, nil
}

func (m *mockSessionRepository) Revoke(ctx context.Context, token string) error {
	session, exists := m.sessions[token]
	if !exists {
		return repository.ErrSessionNotFound
	}
	session.Revoked = true
	return nil
}

func (m *mockSessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	for _, session := range m.sessions {
		if session.UserID == userID {
			session.Revoked = true
		}
	}
	return nil
}

// mockOrderRepository stores deep copies so callers cannot alias stored state
type mockOrderRepository struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	failing error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Lines = append([]domain.OrderLine(nil), o.Lines...)
	c.PickRecords = append([]domain.PickRecord(nil), o.PickRecords...)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return &domain.StorageError{Op: "create order", Err: m.failing}
	}
	if _, exists := m.orders[order.ID]; exists {
		return repository.ErrOrderIDTaken
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *mockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return &domain.StorageError{Op: "update order", Err: m.failing}
	}
	stored, exists := m.orders[order.ID]
	if !exists {
		return &domain.NotFoundError{Resource: "order", ID: order.ID}
	}
	if stored.IsCompleted() {
		return &domain.AlreadyCompletedError{OrderID: order.ID}
	}
	updated := cloneOrder(order)
	updated.Status = stored.Status
	m.orders[order.ID] = updated
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return nil, &domain.StorageError{Op: "find order", Err: m.failing}
	}
	stored, exists := m.orders[id]
	if !exists {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	return cloneOrder(stored), nil
}

func (m *mockOrderRepository) List(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := []*domain.Order{}
	for _, o := range m.orders {
		if status == nil || o.Status == *status {
			orders = append(orders, cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].Date.After(orders[j].Date) })
	return orders, nil
}

func (m *mockOrderRepository) Complete(ctx context.Context, id string, records []domain.PickRecord, completedAt time.Time) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.orders[id]
	if !exists {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	if stored.IsCompleted() {
		return nil, &domain.AlreadyCompletedError{OrderID: id}
	}
	stored.Status = domain.OrderStatusCompleted
	stored.PickRecords = append([]domain.PickRecord(nil), records...)
	stored.CompletedAt = &completedAt
	stored.UpdatedAt = completedAt
	return cloneOrder(stored), nil
}

type mockProductRepository struct {
	products []*domain.Product
	failing  error
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products = append(m.products, product)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "product", ID: id.String()}
}

func (m *mockProductRepository) List(ctx context.Context, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	start := (page - 1) * pageSize
	if start > len(m.products) {
		start = len(m.products)
	}
	end := start + pageSize
	if end > len(m.products) {
		end = len(m.products)
	}
	return m.products[start:end], len(m.products), nil
}

func (m *mockProductRepository) Search(ctx context.Context, term string, limit int) ([]*domain.Product, error) {
	if m.failing != nil {
		return nil, &domain.StorageError{Op: "search products", Err: m.failing}
	}
	needle := strings.ToLower(term)
	found := []*domain.Product{}
	for _, p := range m.products {
		if len(found) == limit {
			break
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Code), needle) ||
			strings.Contains(strings.ToLower(p.Barcode), needle) {
			found = append(found, p)
		}
	}
	return found, nil
}

func (m *mockProductRepository) ReplaceAll(ctx context.Context, products []*domain.Product) error {
	if m.failing != nil {
		return &domain.StorageError{Op: "clear products", Err: m.failing}
	}
	m.products = append([]*domain.Product(nil), products...)
	return nil
}

func (m *mockProductRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error) {
	p, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Quantity = quantity
	return p, nil
}

type recordingMetrics struct {
	created, updated, completed, mismatches, imported int
}

func (r *recordingMetrics) OrderSaved(created bool) {
	if created {
		r.created++
	} else {
		r.updated++
	}
}

func (r *recordingMetrics) OrderCompleted(mismatches int) {
	r.completed++
	r.mismatches += mismatches
}

func (r *recordingMetrics) ProductsImported(n int) {
	r.imported += n
}
