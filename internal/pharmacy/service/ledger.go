package service

import (
	"context"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/events"
	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// LedgerService handles stock reservation, release, consumption, and manual
// lot status changes.
type LedgerService struct {
	lotRepo      *repository.LotRepository
	medicineRepo *repository.MedicineRepository
	publisher    *events.PharmacyEventPublisher
	logger       *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	lotRepo *repository.LotRepository,
	medicineRepo *repository.MedicineRepository,
	publisher *events.PharmacyEventPublisher,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		lotRepo:      lotRepo,
		medicineRepo: medicineRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// LotView is a stock lot enriched with catalog data and derived facts
type LotView struct {
	*repository.StockLot
	MedicineCode string          `json:"medicine_code"`
	MedicineName string          `json:"medicine_name"`
	Unit         string          `json:"unit"`
	Available    decimal.Decimal `json:"available"`
	Expired      bool            `json:"expired"`
}

func lotView(lot *repository.StockLot, med *repository.Medicine, now time.Time) *LotView {
	view := &LotView{
		StockLot:  lot,
		Available: lot.Available(),
		Expired:   lot.IsExpired(now),
	}
	if med != nil {
		view.MedicineCode = med.Code
		view.MedicineName = med.Name
		view.Unit = med.Unit
	}
	return view
}

// GetLot gets a lot with its medicine and derived expiry state
func (s *LedgerService) GetLot(ctx context.Context, id string) (*LotView, error) {
	lot, err := s.lotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	med, err := s.medicineRepo.GetByID(ctx, lot.MedicineID)
	if err != nil {
		med = nil
	}
	return lotView(lot, med, time.Now()), nil
}

// ListLots lists lots matching the filter, earliest expiry first
func (s *LedgerService) ListLots(ctx context.Context, filter repository.LotFilter) ([]*LotView, int64, error) {
	lots, total, err := s.lotRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	medicines, err := s.medicineMap(ctx)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	views := make([]*LotView, len(lots))
	for i, lot := range lots {
		views[i] = lotView(lot, medicines[lot.MedicineID], now)
	}
	return views, total, nil
}

func (s *LedgerService) medicineMap(ctx context.Context) (map[string]*repository.Medicine, error) {
	meds, err := s.medicineRepo.List(ctx, "", false)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*repository.Medicine, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}
	return byID, nil
}

// Reserve allocates a quantity of a medicine across its lots in FEFO order.
// The allocation is all-or-nothing: a shortfall reserves nothing.
func (s *LedgerService) Reserve(ctx context.Context, medicineID string, quantity decimal.Decimal, reservedBy string) ([]repository.LotAllocation, error) {
	if !quantity.IsPositive() {
		return nil, errors.Validation(map[string]string{"quantity": "quantity must be greater than zero"})
	}

	med, err := s.medicineRepo.GetByID(ctx, medicineID)
	if err != nil {
		return nil, err
	}
	if !med.IsActive {
		return nil, errors.Validation(map[string]string{"medicine_id": "medicine is inactive"})
	}

	allocations, err := s.lotRepo.Reserve(ctx, medicineID, quantity)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("medicine_id", medicineID).
		Str("quantity", quantity.String()).
		Int("lots", len(allocations)).
		Msg("stock reserved")

	s.publisher.PublishStockReserved(ctx, medicineID, quantity, allocations, reservedBy)
	return allocations, nil
}

// Release returns a reserved quantity on a lot to its free pool
func (s *LedgerService) Release(ctx context.Context, lotID string, quantity decimal.Decimal, releasedBy string) (*repository.StockLot, error) {
	if !quantity.IsPositive() {
		return nil, errors.Validation(map[string]string{"quantity": "quantity must be greater than zero"})
	}

	lot, err := s.lotRepo.Release(ctx, lotID, quantity)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lot_id", lotID).
		Str("quantity", quantity.String()).
		Msg("reservation released")

	s.publisher.PublishStockReleased(ctx, lot, quantity, releasedBy)
	return lot, nil
}

// Consume removes a reserved quantity on a lot from the warehouse. A low
// stock alert is raised when the medicine's available stock falls below its
// reorder level afterwards.
func (s *LedgerService) Consume(ctx context.Context, lotID string, quantity decimal.Decimal, consumedBy string) (*repository.StockLot, error) {
	if !quantity.IsPositive() {
		return nil, errors.Validation(map[string]string{"quantity": "quantity must be greater than zero"})
	}

	lot, err := s.lotRepo.Consume(ctx, lotID, quantity)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lot_id", lotID).
		Str("quantity", quantity.String()).
		Msg("stock consumed")

	s.publisher.PublishStockConsumed(ctx, lot, quantity, consumedBy)
	s.checkLowStock(ctx, lot.MedicineID)
	return lot, nil
}

// checkLowStock raises a low stock alert if the medicine's available,
// unexpired stock sits below its reorder level. Alerting is best-effort.
func (s *LedgerService) checkLowStock(ctx context.Context, medicineID string) {
	med, err := s.medicineRepo.GetByID(ctx, medicineID)
	if err != nil {
		return
	}

	lots, err := s.lotRepo.ListByMedicine(ctx, medicineID)
	if err != nil {
		return
	}

	now := time.Now()
	available := decimal.Zero
	for _, lot := range lots {
		if lot.Status != repository.LotStatusAvailable || lot.IsExpired(now) {
			continue
		}
		available = available.Add(lot.Available())
	}

	if available.LessThan(med.ReorderLevel) {
		s.publisher.PublishLowStockAlert(ctx, med, available)
	}
}

// AdjustLotStatus performs a manual lot status change with an audit record
func (s *LedgerService) AdjustLotStatus(ctx context.Context, lotID, toStatus, reason, performedBy string) (*repository.StockLot, *repository.LotAdjustment, error) {
	details := make(map[string]string)
	switch toStatus {
	case repository.LotStatusAvailable, repository.LotStatusDamaged, repository.LotStatusRecalled:
	default:
		details["status"] = "status must be one of: available, damaged, recalled"
	}
	if reason == "" {
		details["reason"] = "reason is required"
	}
	if len(details) > 0 {
		return nil, nil, errors.Validation(details)
	}

	lot, adj, err := s.lotRepo.UpdateStatus(ctx, lotID, toStatus, reason, performedBy)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("lot_id", lotID).
		Str("from_status", adj.FromStatus).
		Str("to_status", adj.ToStatus).
		Msg("lot status changed")

	s.publisher.PublishLotStatusChanged(ctx, lot, adj)
	return lot, adj, nil
}

// ListAdjustments lists the status change audit trail of a lot
func (s *LedgerService) ListAdjustments(ctx context.Context, lotID string) ([]*repository.LotAdjustment, error) {
	if _, err := s.lotRepo.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.lotRepo.ListAdjustments(ctx, lotID)
}
