package handler

import (
	"net/http"

	"github.com/agricare/agricare-backend/internal/pharmacy/service"
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/agricare/agricare-backend/pkg/httputil"
	"github.com/agricare/agricare-backend/pkg/logger"
)

// StockHandler handles stock aggregate and dashboard endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// Aggregates returns the per-medicine stock rollup, optionally narrowed by
// a search term and an alert condition
func (h *StockHandler) Aggregates(w http.ResponseWriter, r *http.Request) {
	filter := service.AggregateFilter{
		Search: r.URL.Query().Get("search"),
		Alert:  r.URL.Query().Get("alert"),
	}
	switch filter.Alert {
	case "", service.AlertBelowReorder, service.AlertExpiring, service.AlertExpired:
	default:
		httputil.ErrorLocalized(w, r, errors.Validation(map[string]string{
			"alert": "must be one of below_reorder, expiring, expired",
		}))
		return
	}

	aggregates, err := h.service.GetAggregates(r.Context(), filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, aggregates)
}

// Dashboard returns warehouse-level dashboard statistics
func (h *StockHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}
