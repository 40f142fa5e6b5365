package handler

import (
	"net/http"

	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/internal/pharmacy/service"
	"github.com/agricare/agricare-backend/pkg/httputil"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// LotHandler handles stock lot and ledger endpoints
type LotHandler struct {
	service        *service.LedgerService
	logger         *logger.Logger
	defaultPerPage int
	maxPerPage     int
}

// NewLotHandler creates a new lot handler
func NewLotHandler(svc *service.LedgerService, log *logger.Logger, defaultPerPage, maxPerPage int) *LotHandler {
	return &LotHandler{
		service:        svc,
		logger:         log,
		defaultPerPage: defaultPerPage,
		maxPerPage:     maxPerPage,
	}
}

// List lists stock lots
func (h *LotHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parsePagination(r, h.defaultPerPage, h.maxPerPage)

	filter := repository.LotFilter{
		MedicineID: r.URL.Query().Get("medicine_id"),
		Status:     r.URL.Query().Get("status"),
		BatchCode:  r.URL.Query().Get("batch_code"),
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	}

	lots, total, err := h.service.ListLots(r.Context(), filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, lots, page.Meta(total))
}

// Get gets a stock lot
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lot, err := h.service.GetLot(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

type quantityRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

// Reserve reserves a quantity of a medicine across its lots, earliest
// expiry first
func (h *LotHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	medicineID := chi.URLParam(r, "id")

	if err := requirePermission(r, "pharmacy.stock.reserve"); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req quantityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	allocations, err := h.service.Reserve(r.Context(), medicineID, req.Quantity, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"medicine_id": medicineID,
		"quantity":    req.Quantity,
		"allocations": allocations,
	})
}

// Release returns a reserved quantity on a lot to its free pool
func (h *LotHandler) Release(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	if err := requirePermission(r, "pharmacy.stock.release"); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req quantityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	lot, err := h.service.Release(r.Context(), lotID, req.Quantity, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// Consume removes a reserved quantity on a lot from the warehouse
func (h *LotHandler) Consume(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	if err := requirePermission(r, "pharmacy.stock.consume"); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req quantityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	lot, err := h.service.Consume(r.Context(), lotID, req.Quantity, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=available damaged recalled"`
	Reason string `json:"reason" validate:"required,min=3"`
}

// UpdateStatus performs a manual lot status change with an audit record
func (h *LotHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	if err := requirePermission(r, "pharmacy.stock.adjust"); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	lot, adj, err := h.service.AdjustLotStatus(r.Context(), lotID, req.Status, req.Reason, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"lot":        lot,
		"adjustment": adj,
	})
}

// ListAdjustments lists the status change audit trail of a lot
func (h *LotHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "id")

	adjs, err := h.service.ListAdjustments(r.Context(), lotID)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, adjs)
}
