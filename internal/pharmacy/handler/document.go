package handler

import (
	"net/http"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/internal/pharmacy/service"
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/agricare/agricare-backend/pkg/httputil"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ReceivingHandler handles receiving document endpoints
type ReceivingHandler struct {
	service        *service.ReceivingService
	logger         *logger.Logger
	defaultPerPage int
	maxPerPage     int
}

// NewReceivingHandler creates a new receiving handler
func NewReceivingHandler(svc *service.ReceivingService, log *logger.Logger, defaultPerPage, maxPerPage int) *ReceivingHandler {
	return &ReceivingHandler{
		service:        svc,
		logger:         log,
		defaultPerPage: defaultPerPage,
		maxPerPage:     maxPerPage,
	}
}

type lineRequest struct {
	MedicineID      string          `json:"medicine_id" validate:"required,uuid"`
	BatchCode       string          `json:"batch_code" validate:"required,max=64"`
	Quantity        decimal.Decimal `json:"quantity" validate:"required"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ExpiryDate      string          `json:"expiry_date" validate:"required"`
	ManufactureDate *string         `json:"manufacture_date,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
}

func (req *lineRequest) toInput() (service.LineInput, error) {
	expiry, err := time.Parse(dateLayout, req.ExpiryDate)
	if err != nil {
		return service.LineInput{}, errors.Validation(map[string]string{"expiry_date": "must be a date in YYYY-MM-DD format"})
	}

	var manufacture *time.Time
	if req.ManufactureDate != nil && *req.ManufactureDate != "" {
		parsed, err := time.Parse(dateLayout, *req.ManufactureDate)
		if err != nil {
			return service.LineInput{}, errors.Validation(map[string]string{"manufacture_date": "must be a date in YYYY-MM-DD format"})
		}
		manufacture = &parsed
	}

	return service.LineInput{
		MedicineID:      req.MedicineID,
		BatchCode:       req.BatchCode,
		Quantity:        req.Quantity,
		UnitCost:        req.UnitCost,
		ExpiryDate:      expiry,
		ManufactureDate: manufacture,
		Notes:           req.Notes,
	}, nil
}

type createDocumentRequest struct {
	ReceivingDate string        `json:"receiving_date" validate:"required"`
	SupplierID    string        `json:"supplier_id" validate:"required,uuid"`
	InvoiceNo     *string       `json:"invoice_no,omitempty"`
	PONo          *string       `json:"po_no,omitempty"`
	Notes         *string       `json:"notes,omitempty"`
	Lines         []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Create creates a draft receiving document
func (h *ReceivingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	receivingDate, err := time.Parse(dateLayout, req.ReceivingDate)
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.Validation(map[string]string{"receiving_date": "must be a date in YYYY-MM-DD format"}))
		return
	}

	input := service.CreateDocumentInput{
		ReceivingDate: receivingDate,
		SupplierID:    req.SupplierID,
		InvoiceNo:     req.InvoiceNo,
		PONo:          req.PONo,
		Notes:         req.Notes,
		Lines:         make([]service.LineInput, len(req.Lines)),
	}
	for i, line := range req.Lines {
		if input.Lines[i], err = line.toInput(); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
	}

	doc, err := h.service.CreateDocument(r.Context(), input, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, doc)
}

// List lists receiving documents
func (h *ReceivingHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parsePagination(r, h.defaultPerPage, h.maxPerPage)

	filter := repository.DocumentFilter{
		Status:     r.URL.Query().Get("status"),
		SupplierID: r.URL.Query().Get("supplier_id"),
		Search:     r.URL.Query().Get("search"),
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	}
	if from := r.URL.Query().Get("date_from"); from != "" {
		parsed, err := time.Parse(dateLayout, from)
		if err != nil {
			httputil.ErrorLocalized(w, r, errors.Validation(map[string]string{"date_from": "must be a date in YYYY-MM-DD format"}))
			return
		}
		filter.DateFrom = &parsed
	}
	if to := r.URL.Query().Get("date_to"); to != "" {
		parsed, err := time.Parse(dateLayout, to)
		if err != nil {
			httputil.ErrorLocalized(w, r, errors.Validation(map[string]string{"date_to": "must be a date in YYYY-MM-DD format"}))
			return
		}
		filter.DateTo = &parsed
	}

	docs, total, err := h.service.ListDocuments(r.Context(), filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, docs, page.Meta(total))
}

// Get gets a receiving document with its lines
func (h *ReceivingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, doc)
}

// AddLine appends a line to a draft document
func (h *ReceivingHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")

	var req lineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	input, err := req.toInput()
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	line, err := h.service.AddLine(r.Context(), documentID, input)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, line)
}

// UpdateLine edits a line on a draft document
func (h *ReceivingHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	lineID := chi.URLParam(r, "lineID")

	var req lineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	input, err := req.toInput()
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	line, err := h.service.UpdateLine(r.Context(), documentID, lineID, input)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, line)
}

// DeleteLine removes a line from a draft document
func (h *ReceivingHandler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	lineID := chi.URLParam(r, "lineID")

	if err := h.service.DeleteLine(r.Context(), documentID, lineID); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// Verify moves a draft document to verified
func (h *ReceivingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := requirePermission(r, "pharmacy.receiving.verify"); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	doc, err := h.service.Verify(r.Context(), id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, doc)
}

// Post moves a verified document to posted, applying it to the stock ledger
func (h *ReceivingHandler) Post(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := requirePermission(r, "pharmacy.receiving.post"); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	doc, lotIDs, err := h.service.Post(r.Context(), id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"document": doc,
		"lot_ids":  lotIDs,
	})
}
