package service

import (
	"context"
	"strings"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/events"
	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Expiry tiers. A lot's tier is derived from its expiry date and the current
// day every time it is read.
const (
	TierExpired  = "expired"
	TierWithin30 = "within_30"
	TierWithin60 = "within_60"
	TierWithin90 = "within_90"
	TierOK       = "ok"
)

// Aggregate alert filters
const (
	AlertBelowReorder = "below_reorder"
	AlertExpiring     = "expiring"
	AlertExpired      = "expired"
)

// AggregateFilter narrows the per-medicine stock rollup. Search matches
// medicine code or name; Alert keeps only medicines in that alert condition.
type AggregateFilter struct {
	Search string
	Alert  string
}

// StockService computes stock aggregates and dashboard statistics
type StockService struct {
	lotRepo           *repository.LotRepository
	medicineRepo      *repository.MedicineRepository
	publisher         *events.PharmacyEventPublisher
	logger            *logger.Logger
	expiryWarningDays int
}

// NewStockService creates a new stock service
func NewStockService(
	lotRepo *repository.LotRepository,
	medicineRepo *repository.MedicineRepository,
	publisher *events.PharmacyEventPublisher,
	log *logger.Logger,
	expiryWarningDays int,
) *StockService {
	return &StockService{
		lotRepo:           lotRepo,
		medicineRepo:      medicineRepo,
		publisher:         publisher,
		logger:            log,
		expiryWarningDays: expiryWarningDays,
	}
}

// ExpiryTierCounts counts a medicine's lots per expiry tier
type ExpiryTierCounts struct {
	Expired  int `json:"expired"`
	Within30 int `json:"within_30"`
	Within60 int `json:"within_60"`
	Within90 int `json:"within_90"`
	OK       int `json:"ok"`
}

// MedicineStockAggregate is the per-medicine stock rollup. On-hand and
// reserved cover all lots in available status; Available excludes expired
// lots, matching what a reservation could actually allocate.
type MedicineStockAggregate struct {
	MedicineID     string           `json:"medicine_id"`
	Code           string           `json:"code"`
	Name           string           `json:"name"`
	Unit           string           `json:"unit"`
	ReorderLevel   decimal.Decimal  `json:"reorder_level"`
	OnHand         decimal.Decimal  `json:"on_hand"`
	Reserved       decimal.Decimal  `json:"reserved"`
	Available      decimal.Decimal  `json:"available"`
	StockValue     decimal.Decimal  `json:"stock_value"`
	LotCount       int              `json:"lot_count"`
	EarliestExpiry *time.Time       `json:"earliest_expiry,omitempty"`
	BelowReorder   bool             `json:"below_reorder"`
	ExpiryTiers    ExpiryTierCounts `json:"expiry_tiers"`
}

// DashboardStats summarizes the warehouse for the dashboard
type DashboardStats struct {
	TotalMedicines  int64           `json:"total_medicines"`
	TotalLots       int64           `json:"total_lots"`
	TotalStockValue decimal.Decimal `json:"total_stock_value"`
	LowStockCount   int64           `json:"low_stock_count"`
	ExpiringCount   int64           `json:"expiring_count"`
	ExpiredCount    int64           `json:"expired_count"`
}

// ExpiryTier returns the tier of an expiry date relative to now
func ExpiryTier(expiryDate, now time.Time) string {
	today := now.Truncate(24 * time.Hour)
	if expiryDate.Before(today) {
		return TierExpired
	}
	days := int(expiryDate.Sub(today).Hours() / 24)
	switch {
	case days <= 30:
		return TierWithin30
	case days <= 60:
		return TierWithin60
	case days <= 90:
		return TierWithin90
	default:
		return TierOK
	}
}

// BucketLots folds a medicine's lots into per-tier counts
func BucketLots(lots []*repository.StockLot, now time.Time) ExpiryTierCounts {
	var counts ExpiryTierCounts
	for _, lot := range lots {
		switch ExpiryTier(lot.ExpiryDate, now) {
		case TierExpired:
			counts.Expired++
		case TierWithin30:
			counts.Within30++
		case TierWithin60:
			counts.Within60++
		case TierWithin90:
			counts.Within90++
		default:
			counts.OK++
		}
	}
	return counts
}

// AvailableQuantity sums what a reservation could allocate from the given
// lots: available status, unexpired, on-hand minus reserved
func AvailableQuantity(lots []*repository.StockLot, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		if lot.Status != repository.LotStatusAvailable || lot.IsExpired(now) {
			continue
		}
		total = total.Add(lot.Available())
	}
	return total
}

// MatchAggregate reports whether an aggregate passes the filter. An empty
// filter matches everything.
func MatchAggregate(agg *MedicineStockAggregate, filter AggregateFilter) bool {
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(agg.Code), needle) &&
			!strings.Contains(strings.ToLower(agg.Name), needle) {
			return false
		}
	}
	switch filter.Alert {
	case AlertBelowReorder:
		return agg.BelowReorder
	case AlertExpiring:
		return agg.ExpiryTiers.Within30+agg.ExpiryTiers.Within60+agg.ExpiryTiers.Within90 > 0
	case AlertExpired:
		return agg.ExpiryTiers.Expired > 0
	}
	return true
}

// GetAggregates computes the per-medicine stock rollup across all active
// medicines, narrowed by the filter. Medicines with no stock appear with zero
// quantities so reorder alerts cover them.
func (s *StockService) GetAggregates(ctx context.Context, filter AggregateFilter) ([]*MedicineStockAggregate, error) {
	rows, err := s.lotRepo.StockByMedicine(ctx)
	if err != nil {
		return nil, err
	}

	lots, err := s.lotRepo.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}

	lotsByMedicine := make(map[string][]*repository.StockLot)
	for _, lot := range lots {
		lotsByMedicine[lot.MedicineID] = append(lotsByMedicine[lot.MedicineID], lot)
	}

	now := time.Now()
	aggregates := make([]*MedicineStockAggregate, 0, len(rows))
	for _, row := range rows {
		medicineLots := lotsByMedicine[row.MedicineID]
		available := AvailableQuantity(medicineLots, now)

		agg := &MedicineStockAggregate{
			MedicineID:     row.MedicineID,
			Code:           row.Code,
			Name:           row.Name,
			Unit:           row.Unit,
			ReorderLevel:   row.ReorderLevel,
			OnHand:         row.OnHand,
			Reserved:       row.Reserved,
			Available:      available,
			StockValue:     row.StockValue,
			LotCount:       row.LotCount,
			EarliestExpiry: row.EarliestExpiry,
			BelowReorder:   available.LessThan(row.ReorderLevel),
			ExpiryTiers:    BucketLots(medicineLots, now),
		}
		if !MatchAggregate(agg, filter) {
			continue
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates, nil
}

// GetDashboardStats summarizes the aggregates for the dashboard
func (s *StockService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	aggregates, err := s.GetAggregates(ctx, AggregateFilter{})
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalMedicines:  int64(len(aggregates)),
		TotalStockValue: decimal.Zero,
	}
	for _, agg := range aggregates {
		stats.TotalLots += int64(agg.LotCount)
		stats.TotalStockValue = stats.TotalStockValue.Add(agg.StockValue)
		if agg.BelowReorder {
			stats.LowStockCount++
		}
		stats.ExpiredCount += int64(agg.ExpiryTiers.Expired)
		stats.ExpiringCount += int64(agg.ExpiryTiers.Within30 + agg.ExpiryTiers.Within60 + agg.ExpiryTiers.Within90)
	}
	return stats, nil
}

// PublishExpiryAlerts publishes an expiry alert for every available lot that
// expires within the configured warning window. Meant to run on a schedule.
func (s *StockService) PublishExpiryAlerts(ctx context.Context) error {
	lots, err := s.lotRepo.GetExpiringLots(ctx, s.expiryWarningDays)
	if err != nil {
		return err
	}

	now := time.Now().Truncate(24 * time.Hour)
	for _, lot := range lots {
		med, err := s.medicineRepo.GetByID(ctx, lot.MedicineID)
		if err != nil {
			continue
		}

		daysUntil := int(lot.ExpiryDate.Sub(now).Hours() / 24)
		s.publisher.PublishExpiryAlert(ctx, lot, med.Name, daysUntil)
	}

	s.logger.Info().Int("lots", len(lots)).Msg("expiry alerts published")
	return nil
}
