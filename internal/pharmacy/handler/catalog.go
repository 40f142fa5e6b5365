package handler

import (
	"net/http"

	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/pkg/httputil"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// CatalogHandler handles the read-only medicine and supplier catalog
type CatalogHandler struct {
	medicineRepo *repository.MedicineRepository
	supplierRepo *repository.SupplierRepository
	logger       *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(medicineRepo *repository.MedicineRepository, supplierRepo *repository.SupplierRepository, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		medicineRepo: medicineRepo,
		supplierRepo: supplierRepo,
		logger:       log,
	}
}

// ListMedicines lists medicines, optionally filtered by a search term
func (h *CatalogHandler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	activeOnly := r.URL.Query().Get("include_inactive") != "true"

	medicines, err := h.medicineRepo.List(r.Context(), search, activeOnly)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicines)
}

// GetMedicine gets a medicine by ID
func (h *CatalogHandler) GetMedicine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	medicine, err := h.medicineRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// ListSuppliers lists suppliers
func (h *CatalogHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("include_inactive") != "true"

	suppliers, err := h.supplierRepo.List(r.Context(), activeOnly)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, suppliers)
}

// GetSupplier gets a supplier by ID
func (h *CatalogHandler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	supplier, err := h.supplierRepo.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, supplier)
}
