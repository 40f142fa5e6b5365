package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// MedicineFixture represents test medicine catalog data
type MedicineFixture struct {
	ID           string
	Code         string
	Name         string
	Unit         string
	ReorderLevel decimal.Decimal
	IsActive     bool
	CreatedAt    time.Time
}

// SupplierFixture represents test supplier data
type SupplierFixture struct {
	ID        string
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// StockLotFixture represents test stock lot data
type StockLotFixture struct {
	ID         string
	MedicineID string
	BatchCode  string
	OnHand     decimal.Decimal
	Reserved   decimal.Decimal
	UnitCost   decimal.Decimal
	ExpiryDate time.Time
	Status     string
	CreatedAt  time.Time
}

// UserCacheFixture represents a cached user row
type UserCacheFixture struct {
	UserID    string
	FirstName string
	LastName  string
	Email     string
	RoleName  string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Medicine creates a medicine fixture with defaults
func (f *FixtureFactory) Medicine(opts ...func(*MedicineFixture)) MedicineFixture {
	seq := f.nextSeq()

	med := MedicineFixture{
		ID:           uuid.New().String(),
		Code:         fmt.Sprintf("MED-%04d", seq),
		Name:         fmt.Sprintf("Test Medicine %d", seq),
		Unit:         "tablet",
		ReorderLevel: decimal.NewFromInt(10),
		IsActive:     true,
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&med)
	}

	return med
}

// WithMedicineCode sets the medicine code
func WithMedicineCode(code string) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Code = code
	}
}

// WithMedicineName sets the medicine name
func WithMedicineName(name string) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Name = name
	}
}

// WithReorderLevel sets the medicine reorder level
func WithReorderLevel(level int64) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.ReorderLevel = decimal.NewFromInt(level)
	}
}

// WithUnit sets the medicine unit of measure
func WithUnit(unit string) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Unit = unit
	}
}

// Supplier creates a supplier fixture with defaults
func (f *FixtureFactory) Supplier(opts ...func(*SupplierFixture)) SupplierFixture {
	seq := f.nextSeq()

	sup := SupplierFixture{
		ID:        uuid.New().String(),
		Code:      fmt.Sprintf("SUP-%04d", seq),
		Name:      fmt.Sprintf("Test Supplier %d", seq),
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&sup)
	}

	return sup
}

// WithSupplierName sets the supplier name
func WithSupplierName(name string) func(*SupplierFixture) {
	return func(s *SupplierFixture) {
		s.Name = name
	}
}

// StockLot creates a stock lot fixture with defaults
func (f *FixtureFactory) StockLot(medicineID string, opts ...func(*StockLotFixture)) StockLotFixture {
	seq := f.nextSeq()

	lot := StockLotFixture{
		ID:         uuid.New().String(),
		MedicineID: medicineID,
		BatchCode:  fmt.Sprintf("BATCH-%04d", seq),
		OnHand:     decimal.NewFromInt(100),
		Reserved:   decimal.Zero,
		UnitCost:   decimal.NewFromFloat(2.50),
		ExpiryDate: time.Now().AddDate(1, 0, 0),
		Status:     "available",
		CreatedAt:  time.Now(),
	}

	for _, opt := range opts {
		opt(&lot)
	}

	return lot
}

// WithBatchCode sets the lot batch code
func WithBatchCode(code string) func(*StockLotFixture) {
	return func(l *StockLotFixture) {
		l.BatchCode = code
	}
}

// WithOnHand sets the lot on-hand quantity
func WithOnHand(qty int64) func(*StockLotFixture) {
	return func(l *StockLotFixture) {
		l.OnHand = decimal.NewFromInt(qty)
	}
}

// WithReserved sets the lot reserved quantity
func WithReserved(qty int64) func(*StockLotFixture) {
	return func(l *StockLotFixture) {
		l.Reserved = decimal.NewFromInt(qty)
	}
}

// WithExpiry sets the lot expiry date
func WithExpiry(date time.Time) func(*StockLotFixture) {
	return func(l *StockLotFixture) {
		l.ExpiryDate = date
	}
}

// WithLotStatus sets the lot status
func WithLotStatus(status string) func(*StockLotFixture) {
	return func(l *StockLotFixture) {
		l.Status = status
	}
}

// CachedUser creates a user cache fixture with defaults
func (f *FixtureFactory) CachedUser(opts ...func(*UserCacheFixture)) UserCacheFixture {
	seq := f.nextSeq()

	u := UserCacheFixture{
		UserID:    uuid.New().String(),
		FirstName: fmt.Sprintf("Test%d", seq),
		LastName:  "User",
		Email:     fmt.Sprintf("user%d@test.agricare.co.id", seq),
		RoleName:  "warehouse_staff",
	}

	for _, opt := range opts {
		opt(&u)
	}

	return u
}

// Seed helpers insert fixtures directly; the catalog has no write API in
// this service, so tests load reference data this way.

// SeedMedicine inserts a medicine fixture into the given schema connection
func SeedMedicine(ctx context.Context, db *sqlx.DB, m MedicineFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO medicines (id, code, name, unit, reorder_level, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.Code, m.Name, m.Unit, m.ReorderLevel, m.IsActive)
	return err
}

// SeedSupplier inserts a supplier fixture into the given schema connection
func SeedSupplier(ctx context.Context, db *sqlx.DB, s SupplierFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO suppliers (id, code, name, is_active)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.Code, s.Name, s.IsActive)
	return err
}

// SeedStockLot inserts a stock lot fixture into the given schema connection
func SeedStockLot(ctx context.Context, db *sqlx.DB, l StockLotFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stock_lots (id, medicine_id, batch_code, on_hand, reserved, unit_cost, expiry_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.MedicineID, l.BatchCode, l.OnHand, l.Reserved, l.UnitCost, l.ExpiryDate, l.Status)
	return err
}

// SeedCachedUser inserts a user cache fixture into the given schema connection
func SeedCachedUser(ctx context.Context, db *sqlx.DB, u UserCacheFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_cache (user_id, first_name, last_name, email, role_name)
		VALUES ($1, $2, $3, $4, $5)
	`, u.UserID, u.FirstName, u.LastName, u.Email, u.RoleName)
	return err
}
