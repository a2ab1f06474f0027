package transport

import (
	"net/http"
	"strings"

	"stockroom/internal/domain"
	"stockroom/internal/middleware"
	"stockroom/internal/picking"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ReconcileRequest carries the client-held session and one pick. Scan may
// name a barcode or product code instead of Pick.LineID.
type ReconcileRequest struct {
	Remaining []picking.Line      `json:"remaining" validate:"dive"`
	Records   []domain.PickRecord `json:"records"`
	Pick      ReconcilePick       `json:"pick"`
	Scan      string              `json:"scan"`
}

// ReconcilePick is the picked quantity; LineID may be left empty when Scan is set
type ReconcilePick struct {
	LineID    string `json:"line_id"`
	PickedQty int    `json:"picked_qty" validate:"gte=0"`
}

// ReconcileResponse is the session after the pick plus the record it produced
type ReconcileResponse struct {
	Remaining []picking.Line      `json:"remaining"`
	Records   []domain.PickRecord `json:"records"`
	Record    domain.PickRecord   `json:"record"`
	Complete  bool                `json:"complete"`
}

// PickingHandler exposes the stateless reconciler
type PickingHandler struct {
	logger *zap.Logger
}

// NewPickingHandler creates a new PickingHandler
func NewPickingHandler(logger *zap.Logger) *PickingHandler {
	return &PickingHandler{logger: logger}
}

// RegisterRoutes registers picking routes behind authentication
func (h *PickingHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/picking", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/reconcile", h.Reconcile)
	})
}

// Reconcile applies one pick to the session sent by the client
func (h *PickingHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	if err := picking.CheckLines(req.Remaining); err != nil {
		middleware.RespondWithDomainError(w, h.logger, err)
		return
	}

	lineID := req.Pick.LineID
	if lineID == "" {
		scan := strings.TrimSpace(req.Scan)
		if scan == "" {
			middleware.RespondWithDomainError(w, h.logger, domain.NewValidationError("pick.line_id", "line_id or scan is required"))
			return
		}
		line, ok := picking.MatchLine(req.Remaining, scan)
		if !ok {
			middleware.RespondWithDomainError(w, h.logger, &domain.UnknownLineError{LineID: scan})
			return
		}
		lineID = line.LineID
	}

	session := picking.Session{Remaining: req.Remaining, Records: req.Records}
	next, err := session.Apply(picking.Pick{LineID: lineID, PickedQty: req.Pick.PickedQty})
	if err != nil {
		middleware.RespondWithDomainError(w, middleware.RequestLogger(h.logger, r), err)
		return
	}

	state := sessionResponse("", next)
	middleware.RespondWithJSON(w, http.StatusOK, ReconcileResponse{
		Remaining: state.Remaining,
		Records:   state.Records,
		Record:    next.Records[len(next.Records)-1],
		Complete:  state.Complete,
	})
}
