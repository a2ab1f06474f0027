package service

import (
	"context"
	"io"
	"strings"

	"stockroom/internal/catalog"
	"stockroom/internal/domain"
	"stockroom/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// SearchLimit bounds the number of products returned by a search
	SearchLimit = 20

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ImportMetrics receives catalog import events
type ImportMetrics interface {
	ProductsImported(n int)
}

// CatalogService covers product lookup, stock counting and catalog imports
type CatalogService interface {
	Search(ctx context.Context, term string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListInventory(ctx context.Context, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error)
	RecordCount(ctx context.Context, id uuid.UUID, counted int) (*domain.Product, error)
	Import(ctx context.Context, r io.Reader) (int, error)
}

type catalogService struct {
	productRepo repository.ProductRepository
	metrics     ImportMetrics
	logger      *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(productRepo repository.ProductRepository, metrics ImportMetrics, logger *zap.Logger) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		metrics:     metrics,
		logger:      logger,
	}
}

// Search finds at most SearchLimit products whose name, code or barcode
// contains term, ignoring case
func (s *catalogService) Search(ctx context.Context, term string) ([]*domain.Product, error) {
	return s.productRepo.Search(ctx, strings.TrimSpace(term), SearchLimit)
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// ListInventory pages through the catalog. Out of range paging values are clamped.
func (s *catalogService) ListInventory(ctx context.Context, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	sortOrder = repository.SortOrder(strings.ToUpper(string(sortOrder)))

	return s.productRepo.List(ctx, page, pageSize, sortBy, sortOrder)
}

// RecordCount stores the on-hand quantity found by a stock count
func (s *catalogService) RecordCount(ctx context.Context, id uuid.UUID, counted int) (*domain.Product, error) {
	if counted < 0 {
		return nil, domain.NewValidationError("quantity", "counted quantity must not be negative")
	}

	product, err := s.productRepo.UpdateQuantity(ctx, id, counted)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Inventory counted",
		zap.String("product_id", id.String()),
		zap.String("code", product.Code),
		zap.Int("quantity", counted),
	)
	return product, nil
}

// Import replaces the whole catalog with the products of a CSV file.
// Nothing is written when any row is invalid.
func (s *catalogService) Import(ctx context.Context, r io.Reader) (int, error) {
	products, err := catalog.Parse(r)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, domain.NewValidationError("file", "catalog file contains no products")
	}

	if err := s.productRepo.ReplaceAll(ctx, products); err != nil {
		return 0, err
	}

	s.metrics.ProductsImported(len(products))
	s.logger.Info("Catalog imported", zap.Int("products", len(products)))

	return len(products), nil
}
