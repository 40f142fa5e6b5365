package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/agricare/agricare-backend/pkg/database"
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Lot statuses. "expired" is intentionally not a status: whether a lot is
// expired is a fact of its expiry date and the current day, derived at read
// time, never persisted.
const (
	LotStatusAvailable = "available"
	LotStatusDamaged   = "damaged"
	LotStatusRecalled  = "recalled"
)

// StockLot is one batch of one medicine in the warehouse. The pair
// (medicine_id, batch_code) is unique; posting a receiving line for an
// existing pair increments the lot instead of creating a sibling.
type StockLot struct {
	ID              string          `db:"id" json:"id"`
	MedicineID      string          `db:"medicine_id" json:"medicine_id"`
	BatchCode       string          `db:"batch_code" json:"batch_code"`
	OnHand          decimal.Decimal `db:"on_hand" json:"on_hand"`
	Reserved        decimal.Decimal `db:"reserved" json:"reserved"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ExpiryDate      time.Time       `db:"expiry_date" json:"expiry_date"`
	ManufactureDate *time.Time      `db:"manufacture_date" json:"manufacture_date,omitempty"`
	DocumentID      *string         `db:"document_id" json:"document_id,omitempty"`
	StorageLocation *string         `db:"storage_location" json:"storage_location,omitempty"`
	Status          string          `db:"status" json:"status"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Available returns the quantity not yet reserved
func (l *StockLot) Available() decimal.Decimal {
	return l.OnHand.Sub(l.Reserved)
}

// IsExpired reports whether the lot's expiry date has passed relative to now
func (l *StockLot) IsExpired(now time.Time) bool {
	return l.ExpiryDate.Before(now.Truncate(24 * time.Hour))
}

// LotAdjustment is the audit record of a manual lot status change
type LotAdjustment struct {
	ID          string    `db:"id" json:"id"`
	LotID       string    `db:"lot_id" json:"lot_id"`
	FromStatus  string    `db:"from_status" json:"from_status"`
	ToStatus    string    `db:"to_status" json:"to_status"`
	Reason      string    `db:"reason" json:"reason"`
	PerformedBy string    `db:"performed_by" json:"performed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// LotFilter narrows lot listings
type LotFilter struct {
	MedicineID string
	Status     string
	BatchCode  string
	Limit      int
	Offset     int
}

// LotRepository handles stock lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*StockLot, error) {
	var lot StockLot
	query := `SELECT * FROM stock_lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock lot")
		}
		return nil, err
	}
	return &lot, nil
}

// List lists lots matching the filter, earliest expiry first
func (r *LotRepository) List(ctx context.Context, filter LotFilter) ([]*StockLot, int64, error) {
	where := `
		WHERE ($1 = '' OR medicine_id::text = $1)
		AND ($2 = '' OR status = $2)
		AND ($3 = '' OR batch_code ILIKE '%' || $3 || '%')
	`

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_lots `+where,
		filter.MedicineID, filter.Status, filter.BatchCode); err != nil {
		return nil, 0, err
	}

	var lots []*StockLot
	query := `SELECT * FROM stock_lots ` + where + `
		ORDER BY expiry_date, created_at
		LIMIT $4 OFFSET $5
	`
	if err := r.db.SelectContext(ctx, &lots, query,
		filter.MedicineID, filter.Status, filter.BatchCode, filter.Limit, filter.Offset); err != nil {
		return nil, 0, err
	}
	return lots, total, nil
}

// ListByMedicine lists all lots of a medicine, earliest expiry first
func (r *LotRepository) ListByMedicine(ctx context.Context, medicineID string) ([]*StockLot, error) {
	var lots []*StockLot
	query := `
		SELECT * FROM stock_lots
		WHERE medicine_id = $1
		ORDER BY expiry_date, created_at
	`
	if err := r.db.SelectContext(ctx, &lots, query, medicineID); err != nil {
		return nil, err
	}
	return lots, nil
}

// Reserve allocates a quantity of a medicine across its lots in FEFO order.
// The medicine's available, unexpired lots are locked for the duration of
// the transaction, so concurrent reservations against the same medicine
// serialize and cannot double-book the same units.
func (r *LotRepository) Reserve(ctx context.Context, medicineID string, quantity decimal.Decimal) ([]LotAllocation, error) {
	var allocations []LotAllocation

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var lots []*StockLot
		query := `
			SELECT * FROM stock_lots
			WHERE medicine_id = $1
			AND status = 'available'
			AND expiry_date >= CURRENT_DATE
			ORDER BY expiry_date, created_at
			FOR UPDATE
		`
		if err := tx.SelectContext(ctx, &lots, query, medicineID); err != nil {
			return err
		}

		plan, err := PlanReservation(lots, quantity)
		if err != nil {
			return err
		}

		for _, alloc := range plan {
			if _, err := tx.ExecContext(ctx,
				`UPDATE stock_lots SET reserved = reserved + $2, updated_at = NOW() WHERE id = $1`,
				alloc.LotID, alloc.Quantity,
			); err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return err
			}
		}

		allocations = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// Release returns a reserved quantity to the lot's free pool. The decrement
// is guarded: it only applies when the lot still has at least that much
// reserved, so an over-release leaves the row untouched.
func (r *LotRepository) Release(ctx context.Context, lotID string, quantity decimal.Decimal) (*StockLot, error) {
	return r.guardedDecrement(ctx, lotID, quantity,
		`UPDATE stock_lots
		 SET reserved = reserved - $2, updated_at = NOW()
		 WHERE id = $1 AND reserved >= $2
		 RETURNING *`,
		func(requested, reserved string) *errors.AppError {
			return errors.OverRelease(requested, reserved)
		})
}

// Consume removes a reserved quantity from the warehouse entirely, dropping
// both reserved and on-hand. Guarded the same way as Release.
func (r *LotRepository) Consume(ctx context.Context, lotID string, quantity decimal.Decimal) (*StockLot, error) {
	return r.guardedDecrement(ctx, lotID, quantity,
		`UPDATE stock_lots
		 SET reserved = reserved - $2, on_hand = on_hand - $2, updated_at = NOW()
		 WHERE id = $1 AND reserved >= $2
		 RETURNING *`,
		func(requested, reserved string) *errors.AppError {
			return errors.OverConsume(requested, reserved)
		})
}

func (r *LotRepository) guardedDecrement(ctx context.Context, lotID string, quantity decimal.Decimal, query string, overErr func(requested, reserved string) *errors.AppError) (*StockLot, error) {
	var lot StockLot
	err := r.db.QueryRowxContext(ctx, query, lotID, quantity).StructScan(&lot)
	if err == nil {
		return &lot, nil
	}
	if err != sql.ErrNoRows {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, err
	}

	// The guarded UPDATE matched nothing: either the lot is gone or the
	// requested quantity exceeds what is reserved.
	current, getErr := r.GetByID(ctx, lotID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, overErr(quantity.String(), current.Reserved.String())
}

// UpdateStatus performs a manual lot status change and records it in the
// adjustment audit trail. The lot row is locked so the from-status in the
// audit record is the status the change actually applied to.
func (r *LotRepository) UpdateStatus(ctx context.Context, lotID, toStatus, reason, performedBy string) (*StockLot, *LotAdjustment, error) {
	var lot StockLot
	adj := &LotAdjustment{
		ID:          uuid.New().String(),
		LotID:       lotID,
		ToStatus:    toStatus,
		Reason:      reason,
		PerformedBy: performedBy,
	}

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &lot, `SELECT * FROM stock_lots WHERE id = $1 FOR UPDATE`, lotID); err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("stock lot")
			}
			return err
		}

		if lot.Status == toStatus {
			return errors.InvalidState(lot.Status, "change status to "+toStatus)
		}
		adj.FromStatus = lot.Status

		if _, err := tx.ExecContext(ctx,
			`UPDATE stock_lots SET status = $2, updated_at = NOW() WHERE id = $1`,
			lotID, toStatus,
		); err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		lot.Status = toStatus

		query := `
			INSERT INTO lot_adjustments (id, lot_id, from_status, to_status, reason, performed_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`
		return tx.QueryRowxContext(ctx, query,
			adj.ID, adj.LotID, adj.FromStatus, adj.ToStatus, adj.Reason, adj.PerformedBy,
		).Scan(&adj.CreatedAt)
	})
	if err != nil {
		return nil, nil, err
	}
	return &lot, adj, nil
}

// ListAdjustments lists the audit trail of a lot, newest first
func (r *LotRepository) ListAdjustments(ctx context.Context, lotID string) ([]*LotAdjustment, error) {
	var adjs []*LotAdjustment
	query := `
		SELECT * FROM lot_adjustments
		WHERE lot_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &adjs, query, lotID); err != nil {
		return nil, err
	}
	return adjs, nil
}

// MedicineStockRow is the per-medicine rollup over available lots
type MedicineStockRow struct {
	MedicineID     string          `db:"medicine_id"`
	Code           string          `db:"code"`
	Name           string          `db:"name"`
	Unit           string          `db:"unit"`
	ReorderLevel   decimal.Decimal `db:"reorder_level"`
	OnHand         decimal.Decimal `db:"on_hand"`
	Reserved       decimal.Decimal `db:"reserved"`
	StockValue     decimal.Decimal `db:"stock_value"`
	LotCount       int             `db:"lot_count"`
	EarliestExpiry *time.Time      `db:"earliest_expiry"`
}

// StockByMedicine rolls up available lots that still hold stock per medicine,
// the same population the aggregation fold sees. Medicines with no lots still
// appear, with zero quantities, so reorder alerts cover them.
func (r *LotRepository) StockByMedicine(ctx context.Context) ([]*MedicineStockRow, error) {
	var rows []*MedicineStockRow
	query := `
		SELECT
			m.id AS medicine_id,
			m.code,
			m.name,
			m.unit,
			m.reorder_level,
			COALESCE(SUM(l.on_hand), 0) AS on_hand,
			COALESCE(SUM(l.reserved), 0) AS reserved,
			COALESCE(SUM(l.on_hand * l.unit_cost), 0) AS stock_value,
			COUNT(l.id) AS lot_count,
			MIN(l.expiry_date) AS earliest_expiry
		FROM medicines m
		LEFT JOIN stock_lots l ON l.medicine_id = m.id AND l.status = 'available' AND l.on_hand > 0
		WHERE m.is_active = true
		GROUP BY m.id, m.code, m.name, m.unit, m.reorder_level
		ORDER BY m.name
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListAvailable lists every lot in available status that still holds stock,
// the input for the per-medicine aggregation fold
func (r *LotRepository) ListAvailable(ctx context.Context) ([]*StockLot, error) {
	var lots []*StockLot
	query := `
		SELECT * FROM stock_lots
		WHERE status = 'available' AND on_hand > 0
		ORDER BY medicine_id, expiry_date, created_at
	`
	if err := r.db.SelectContext(ctx, &lots, query); err != nil {
		return nil, err
	}
	return lots, nil
}

// GetExpiringLots gets available lots expiring within the given days
func (r *LotRepository) GetExpiringLots(ctx context.Context, withinDays int) ([]*StockLot, error) {
	var lots []*StockLot
	query := `
		SELECT * FROM stock_lots
		WHERE status = 'available' AND on_hand > 0
		AND expiry_date >= CURRENT_DATE
		AND expiry_date <= CURRENT_DATE + $1 * INTERVAL '1 day'
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, withinDays); err != nil {
		return nil, err
	}
	return lots, nil
}

// GetExpiredLots gets lots already past their expiry date that still hold stock
func (r *LotRepository) GetExpiredLots(ctx context.Context) ([]*StockLot, error) {
	var lots []*StockLot
	query := `
		SELECT * FROM stock_lots
		WHERE status = 'available' AND on_hand > 0 AND expiry_date < CURRENT_DATE
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query); err != nil {
		return nil, err
	}
	return lots, nil
}
