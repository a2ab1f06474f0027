package transport

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"stockroom/internal/domain"
	"stockroom/internal/middleware"
	"stockroom/internal/repository"
	"stockroom/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CountRequest is the quantity found during a stock count
type CountRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

// InventoryResponse is one page of the inventory listing
type InventoryResponse struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ImportResponse reports how many products an import loaded
type ImportResponse struct {
	Imported int `json:"imported"`
}

// ProductHandler serves catalog search, inventory counting and imports
type ProductHandler struct {
	catalogService service.CatalogService
	maxImportBytes int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalogService service.CatalogService, maxImportBytes int64, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
		maxImportBytes: maxImportBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers product and inventory routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.Search)
		r.Get("/{id}", h.GetProduct)
		r.With(adminMiddleware).Post("/import", h.Import)
	})

	r.Route("/api/inventory", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListInventory)
		r.Put("/{id}/count", h.RecordCount)
	})
}

// Search returns up to 20 products matching ?search=
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalogService.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetProduct returns a single product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListInventory pages through products with ?page, ?page_size, ?sort_by and ?sort_order
func (h *ProductHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize < 1 || pageSize > service.MaxPageSize {
		pageSize = service.DefaultPageSize
	}

	products, total, err := h.catalogService.ListInventory(
		r.Context(),
		page,
		pageSize,
		query.Get("sort_by"),
		repository.SortOrder(query.Get("sort_order")),
	)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, InventoryResponse{
		Products: products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// RecordCount stores the on-hand quantity of a product
func (h *ProductHandler) RecordCount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req CountRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.catalogService.RecordCount(r.Context(), id, *req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Import replaces the catalog with an uploaded CSV, sent either as the raw
// body or as the "file" part of a multipart form
func (h *ProductHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImportBytes)

	var source io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			h.respondImportError(w, err)
			return
		}
		defer file.Close()
		source = file
	}

	data, err := io.ReadAll(source)
	if err != nil {
		h.respondImportError(w, err)
		return
	}

	imported, err := h.catalogService.Import(r.Context(), bytes.NewReader(data))
	if err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ImportResponse{Imported: imported})
}

func (h *ProductHandler) respondImportError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "catalog file is too large")
	case errors.Is(err, http.ErrMissingFile):
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "missing catalog file", map[string]interface{}{"field": "file"})
	default:
		h.logger.Debug("Unreadable catalog upload", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "unreadable catalog upload")
	}
}
