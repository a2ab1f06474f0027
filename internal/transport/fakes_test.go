package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"stockroom/internal/domain"
	"stockroom/internal/metrics"
	"stockroom/internal/middleware"
	"stockroom/internal/repository"
	"stockroom/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryUserRepository struct {
	users map[string]*domain.User
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*domain.User)}
}

func (m *memoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *memoryUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memoryUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	users := make([]*domain.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (m *memoryUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*domain.User, error) {
	user, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

func (m *memoryUserRepository) Count(ctx context.Context) (int, error) {
	return len(m.users), nil
}

type memorySessionRepository struct {
	sessions map[string]*domain.Session
}

func newMemorySessionRepository() *memorySessionRepository {
	return &memorySessionRepository{sessions: make(map[string]*domain.Session)}
}

func (m *memorySessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.sessions[session.Token] = session
	return nil
}

func (m *memorySessionRepository) FindByToken(ctx context.Context, token string) (*domain.Session, error) {
	session, exists := m.sessions[token]
	if !exists {
		return nil, repository.ErrSessionNotFound
	}
	if session.Revoked {
		return nil, repository.ErrSessionRevoked
	}
	return session, nil
}

func (m *memorySessionRepository) Revoke(ctx context.Context, token string) error {
	session, exists := m.sessions[token]
	if !exists {
		return repository.ErrSessionNotFound
	}
	session.Revoked = true
	return nil
}

func (m *memorySessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	for _, session := range m.sessions {
		if session.UserID == userID {
			session.Revoked = true
		}
	}
	return nil
}

type memoryOrderRepository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newMemoryOrderRepository() *memoryOrderRepository {
	return &memoryOrderRepository{orders: make(map[string]domain.Order)}
}

func (m *memoryOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[order.ID]; exists {
		return repository.ErrOrderIDTaken
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *memoryOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.orders[order.ID]
	if !exists {
		return &domain.NotFoundError{Resource: "order", ID: order.ID}
	}
	if stored.IsCompleted() {
		return &domain.AlreadyCompletedError{OrderID: order.ID}
	}
	updated := *order
	updated.Status = stored.Status
	m.orders[order.ID] = updated
	return nil
}

func (m *memoryOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.orders[id]
	if !exists {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	return &stored, nil
}

func (m *memoryOrderRepository) List(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := []*domain.Order{}
	for _, o := range m.orders {
		o := o
		if status == nil || o.Status == *status {
			orders = append(orders, &o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].Date.After(orders[j].Date) })
	return orders, nil
}

func (m *memoryOrderRepository) Complete(ctx context.Context, id string, records []domain.PickRecord, completedAt time.Time) (*domain.Order, error) {
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
	stored.PickRecords = records
	stored.CompletedAt = &completedAt
	m.orders[id] = stored
	return &stored, nil
}

type memoryProductRepository struct {
	products []*domain.Product
}

func (m *memoryProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products = append(m.products, product)
	return nil
}

func (m *memoryProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "product", ID: id.String()}
}

func (m *memoryProductRepository) List(ctx context.Context, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
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

func (m *memoryProductRepository) Search(ctx context.Context, term string, limit int) ([]*domain.Product, error) {
	needle := strings.ToLower(term)
	found := []*domain.Product{}
	for _, p := range m.products {
		if len(found) == limit {
			break
		}
		hay := strings.ToLower(p.Name + "\x00" + p.Code + "\x00" + p.Barcode)
		if strings.Contains(hay, needle) {
			found = append(found, p)
		}
	}
	return found, nil
}

func (m *memoryProductRepository) ReplaceAll(ctx context.Context, products []*domain.Product) error {
	m.products = append([]*domain.Product(nil), products...)
	return nil
}

func (m *memoryProductRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error) {
	p, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Quantity = quantity
	return p, nil
}

// authenticatedAs stands in for the JWT middleware in handler tests
func authenticatedAs(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithPrincipal(r.Context(), middleware.Principal{UserID: uuid.NewString(), Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type testAPI struct {
	router   chi.Router
	orders   *memoryOrderRepository
	products *memoryProductRepository
}

func newTestAPI(role string, products ...*domain.Product) *testAPI {
	logger := zap.NewNop()
	m := metrics.New()

	orders := newMemoryOrderRepository()
	catalog := &memoryProductRepository{products: products}

	auth := authenticatedAs(role)
	admin := middleware.RequireAdmin(logger)

	var tick sync.Mutex
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick.Lock()
		defer tick.Unlock()
		now = now.Add(time.Second)
		return now
	}

	router := chi.NewRouter()
	NewOrderHandler(service.NewOrderService(orders, m, logger, service.WithClock(clock)), logger).RegisterRoutes(router, auth)
	NewPickingHandler(logger).RegisterRoutes(router, auth)
	NewProductHandler(service.NewCatalogService(catalog, m, logger), 1024, logger).RegisterRoutes(router, auth, admin)

	return &testAPI{router: router, orders: orders, products: catalog}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}
