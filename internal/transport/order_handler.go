package transport

import (
	"net/http"

	"stockroom/internal/domain"
	"stockroom/internal/middleware"
	"stockroom/internal/picking"
	"stockroom/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LineRequest is one order line as sent by the client
type LineRequest struct {
	ID          string          `json:"id"`
	ProductID   *uuid.UUID      `json:"product_id"`
	Name        string          `json:"name" validate:"notblank,max=255"`
	ProductCode string          `json:"product_code" validate:"max=100"`
	Barcode     string          `json:"barcode" validate:"max=100"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	Price       decimal.Decimal `json:"price"`
	Note        string          `json:"note" validate:"max=500"`
}

// OrderRequest is the editable part of an order. Status and total are
// derived on the server and not accepted from clients.
type OrderRequest struct {
	CustomerName string        `json:"customer_name" validate:"notblank,max=255"`
	Lines        []LineRequest `json:"lines" validate:"dive"`
}

// PickRecordRequest is one picked line submitted on completion
type PickRecordRequest struct {
	LineID      string `json:"line_id" validate:"required"`
	OriginalQty int    `json:"original_qty" validate:"gte=0"`
	PickedQty   int    `json:"picked_qty" validate:"gte=0"`
}

// CompleteRequest carries the pick records that close an order
type CompleteRequest struct {
	PickRecords []PickRecordRequest `json:"pick_records" validate:"dive"`
}

// SessionResponse is a picking pass as returned to the client
type SessionResponse struct {
	OrderID   string              `json:"order_id,omitempty"`
	Remaining []picking.Line      `json:"remaining"`
	Records   []domain.PickRecord `json:"records"`
	Complete  bool                `json:"complete"`
}

func (req OrderRequest) toOrder(id string) *domain.Order {
	order := &domain.Order{
		ID:           id,
		CustomerName: req.CustomerName,
		Lines:        make([]domain.OrderLine, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:          l.ID,
			ProductID:   l.ProductID,
			Name:        l.Name,
			ProductCode: l.ProductCode,
			Barcode:     l.Barcode,
			Quantity:    l.Quantity,
			Price:       l.Price,
			Note:        l.Note,
		})
	}
	return order
}

func sessionResponse(orderID string, session picking.Session) SessionResponse {
	remaining := session.Remaining
	if remaining == nil {
		remaining = []picking.Line{}
	}
	records := session.Records
	if records == nil {
		records = []domain.PickRecord{}
	}
	return SessionResponse{
		OrderID:   orderID,
		Remaining: remaining,
		Records:   records,
		Complete:  session.IsComplete(),
	}
}

// OrderHandler serves the order lifecycle: draft, save, pick and complete
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers order routes behind authentication
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Get("/draft", h.NewDraft)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Get("/{id}/picking", h.StartPicking)
		r.Post("/{id}/complete", h.Complete)
	})
}

// List returns orders newest first, optionally filtered by ?status=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.OrderStatus(raw)
		status = &s
	}

	orders, err := h.orderService.List(r.Context(), status)
	if err != nil {
		middleware.RespondWithDomainError(w, middleware.RequestLogger(h.logger, r), err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// NewDraft returns an empty unsaved order
func (h *OrderHandler) NewDraft(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.orderService.NewDraft())
}

// Get returns a single order
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithDomainError(w, middleware.RequestLogger(h.logger, r), err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// Create saves a new order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	order, err := h.orderService.Save(r.Context(), req.toOrder(""))
	if err != nil {
		middleware.RespondWithDomainError(w, middleware.RequestLogger(h.logger, r), err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// Update replaces the customer name and lines of a saved order
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	order, err := h.orderService.Save(r.Context(), req.toOrder(chi.URLParam(r, "id")))
	if err != nil {
		middleware.RespondWithDomainError(w, middleware.RequestLogger(h.logger, r), err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// StartPicking opens a picking pass with every line outstanding
func (h *OrderHandler) StartPicking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.orderService.StartPicking(r.Context(), id)
	if err != nil {
		middleware.RespondWithDomainError(w, middleware.RequestLogger(h.logger, r), err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sessionResponse(id, session))
}

// Complete closes a saved order with the submitted pick records
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	records := make([]domain.PickRecord, 0, len(req.PickRecords))
	for _, rec := range req.PickRecords {
		records = append(records, domain.PickRecord{
			LineID:      rec.LineID,
			OriginalQty: rec.OriginalQty,
			PickedQty:   rec.PickedQty,
		})
	}

	logger := middleware.RequestLogger(h.logger, r)

	order, err := h.orderService.Complete(r.Context(), chi.URLParam(r, "id"), records)
	if err != nil {
		middleware.RespondWithDomainError(w, logger, err)
		return
	}

	logger.Debug("Pick records accepted", zap.String("order_id", order.ID), zap.Int("records", len(records)))

	middleware.RespondWithJSON(w, http.StatusOK, order)
}
