package service_test

import (
	"testing"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/internal/pharmacy/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestExpiryTier(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   string
	}{
		{"yesterday", now.AddDate(0, 0, -1), service.TierExpired},
		{"today", now.Truncate(24 * time.Hour), service.TierWithin30},
		{"in 30 days", now.Truncate(24 * time.Hour).AddDate(0, 0, 30), service.TierWithin30},
		{"in 31 days", now.Truncate(24 * time.Hour).AddDate(0, 0, 31), service.TierWithin60},
		{"in 60 days", now.Truncate(24 * time.Hour).AddDate(0, 0, 60), service.TierWithin60},
		{"in 90 days", now.Truncate(24 * time.Hour).AddDate(0, 0, 90), service.TierWithin90},
		{"in 91 days", now.Truncate(24 * time.Hour).AddDate(0, 0, 91), service.TierOK},
		{"next year", now.AddDate(1, 0, 0), service.TierOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.ExpiryTier(tt.expiry, now))
		})
	}
}

func stockLot(onHand, reserved int64, status string, expiry time.Time) *repository.StockLot {
	return &repository.StockLot{
		OnHand:     decimal.NewFromInt(onHand),
		Reserved:   decimal.NewFromInt(reserved),
		Status:     status,
		ExpiryDate: expiry,
	}
}

func TestBucketLots(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lots := []*repository.StockLot{
		stockLot(10, 0, repository.LotStatusAvailable, now.AddDate(0, 0, -10)),
		stockLot(10, 0, repository.LotStatusAvailable, now.AddDate(0, 0, 15)),
		stockLot(10, 0, repository.LotStatusAvailable, now.AddDate(0, 0, 45)),
		stockLot(10, 0, repository.LotStatusAvailable, now.AddDate(0, 0, 75)),
		stockLot(10, 0, repository.LotStatusAvailable, now.AddDate(1, 0, 0)),
	}

	counts := service.BucketLots(lots, now)
	assert.Equal(t, 1, counts.Expired)
	assert.Equal(t, 1, counts.Within30)
	assert.Equal(t, 1, counts.Within60)
	assert.Equal(t, 1, counts.Within90)
	assert.Equal(t, 1, counts.OK)
}

func TestAvailableQuantity(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 6, 0)

	lots := []*repository.StockLot{
		stockLot(100, 30, repository.LotStatusAvailable, future),
		stockLot(50, 0, repository.LotStatusAvailable, now.AddDate(0, 0, -1)), // expired
		stockLot(40, 0, repository.LotStatusDamaged, future),                  // not available
		stockLot(20, 20, repository.LotStatusAvailable, future),               // fully reserved
	}

	got := service.AvailableQuantity(lots, now)
	assert.True(t, got.Equal(decimal.NewFromInt(70)), "got %s", got)
}

func TestAvailableQuantity_Empty(t *testing.T) {
	got := service.AvailableQuantity(nil, time.Now())
	assert.True(t, got.IsZero())
}

func TestMatchAggregate(t *testing.T) {
	healthy := &service.MedicineStockAggregate{
		Code: "MED-001",
		Name: "Paracetamol 500mg",
		ExpiryTiers: service.ExpiryTierCounts{
			OK: 2,
		},
	}
	low := &service.MedicineStockAggregate{
		Code:         "MED-002",
		Name:         "Amoxicillin 250mg",
		BelowReorder: true,
		ExpiryTiers: service.ExpiryTierCounts{
			Expired:  1,
			Within30: 1,
		},
	}

	tests := []struct {
		name   string
		agg    *service.MedicineStockAggregate
		filter service.AggregateFilter
		want   bool
	}{
		{"empty filter matches", healthy, service.AggregateFilter{}, true},
		{"search matches name case-insensitively", healthy, service.AggregateFilter{Search: "paraceta"}, true},
		{"search matches code", healthy, service.AggregateFilter{Search: "med-001"}, true},
		{"search misses", healthy, service.AggregateFilter{Search: "ibuprofen"}, false},
		{"below_reorder keeps flagged", low, service.AggregateFilter{Alert: service.AlertBelowReorder}, true},
		{"below_reorder drops healthy", healthy, service.AggregateFilter{Alert: service.AlertBelowReorder}, false},
		{"expiring keeps lots in warning tiers", low, service.AggregateFilter{Alert: service.AlertExpiring}, true},
		{"expiring drops all-ok", healthy, service.AggregateFilter{Alert: service.AlertExpiring}, false},
		{"expired keeps expired", low, service.AggregateFilter{Alert: service.AlertExpired}, true},
		{"expired drops unexpired", healthy, service.AggregateFilter{Alert: service.AlertExpired}, false},
		{"search and alert combine", low, service.AggregateFilter{Search: "amox", Alert: service.AlertExpired}, true},
		{"search fails before alert", low, service.AggregateFilter{Search: "paraceta", Alert: service.AlertExpired}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.MatchAggregate(tt.agg, tt.filter))
		})
	}
}
