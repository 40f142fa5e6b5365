package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/agricare/agricare-backend/pkg/database"
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Medicine represents a medicine in the catalog. The catalog is reference
// data in this service; master-data maintenance lives elsewhere in the ERP.
type Medicine struct {
	ID           string          `db:"id" json:"id"`
	Code         string          `db:"code" json:"code"`
	Name         string          `db:"name" json:"name"`
	Unit         string          `db:"unit" json:"unit"`
	ReorderLevel decimal.Decimal `db:"reorder_level" json:"reorder_level"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Supplier represents a medicine supplier
type Supplier struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MedicineRepository handles medicine catalog lookups
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var med Medicine
	query := `SELECT * FROM medicines WHERE id = $1`
	if err := r.db.GetContext(ctx, &med, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &med, nil
}

// GetByCode gets a medicine by its catalog code
func (r *MedicineRepository) GetByCode(ctx context.Context, code string) (*Medicine, error) {
	var med Medicine
	query := `SELECT * FROM medicines WHERE code = $1`
	if err := r.db.GetContext(ctx, &med, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &med, nil
}

// List lists medicines, optionally filtered by a search term
func (r *MedicineRepository) List(ctx context.Context, search string, activeOnly bool) ([]*Medicine, error) {
	var meds []*Medicine
	query := `
		SELECT * FROM medicines
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%')
		AND (NOT $2 OR is_active = true)
		ORDER BY name
	`
	if err := r.db.SelectContext(ctx, &meds, query, search, activeOnly); err != nil {
		return nil, err
	}
	return meds, nil
}

// SupplierRepository handles supplier lookups
type SupplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// GetByID gets a supplier by ID
func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*Supplier, error) {
	var sup Supplier
	query := `SELECT * FROM suppliers WHERE id = $1`
	if err := r.db.GetContext(ctx, &sup, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("supplier")
		}
		return nil, err
	}
	return &sup, nil
}

// List lists suppliers
func (r *SupplierRepository) List(ctx context.Context, activeOnly bool) ([]*Supplier, error) {
	var sups []*Supplier
	query := `
		SELECT * FROM suppliers
		WHERE (NOT $1 OR is_active = true)
		ORDER BY name
	`
	if err := r.db.SelectContext(ctx, &sups, query, activeOnly); err != nil {
		return nil, err
	}
	return sups, nil
}
