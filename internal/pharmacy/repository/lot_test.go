package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotRepository_Reserve_FEFOOrder(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "lot-reserve-fefo")
	med := suite.Fixtures.Medicine()
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, med))

	now := time.Now()
	late := suite.Fixtures.StockLot(med.ID, testutil.WithBatchCode("LATE"), testutil.WithOnHand(100), testutil.WithExpiry(now.AddDate(0, 9, 0)))
	early := suite.Fixtures.StockLot(med.ID, testutil.WithBatchCode("EARLY"), testutil.WithOnHand(20), testutil.WithExpiry(now.AddDate(0, 1, 0)))
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, late))
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, early))

	repo := repository.NewLotRepository(ts.DB)
	allocations, err := repo.Reserve(ctx, med.ID, decimal.NewFromInt(30))
	require.NoError(t, err)
	require.Len(t, allocations, 2)

	assert.Equal(t, "EARLY", allocations[0].BatchCode)
	assert.True(t, allocations[0].Quantity.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "LATE", allocations[1].BatchCode)
	assert.True(t, allocations[1].Quantity.Equal(decimal.NewFromInt(10)))

	earlyLot, err := repo.GetByID(ctx, early.ID)
	require.NoError(t, err)
	assert.True(t, earlyLot.Reserved.Equal(decimal.NewFromInt(20)))
	lateLot, err := repo.GetByID(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, lateLot.Reserved.Equal(decimal.NewFromInt(10)))
}

func TestLotRepository_Reserve_SkipsExpiredAndNonAvailable(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "lot-reserve-skip")
	med := suite.Fixtures.Medicine()
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, med))

	now := time.Now()
	expired := suite.Fixtures.StockLot(med.ID, testutil.WithBatchCode("EXPIRED"), testutil.WithExpiry(now.AddDate(0, 0, -1)))
	damaged := suite.Fixtures.StockLot(med.ID, testutil.WithBatchCode("DAMAGED"), testutil.WithLotStatus("damaged"))
	good := suite.Fixtures.StockLot(med.ID, testutil.WithBatchCode("GOOD"), testutil.WithOnHand(50))
	for _, l := range []testutil.StockLotFixture{expired, damaged, good} {
		require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, l))
	}

	repo := repository.NewLotRepository(ts.DB)
	allocations, err := repo.Reserve(ctx, med.ID, decimal.NewFromInt(40))
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, "GOOD", allocations[0].BatchCode)
}

func TestLotRepository_Reserve_InsufficientStockMutatesNothing(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "lot-reserve-short")
	med := suite.Fixtures.Medicine()
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, med))

	lot := suite.Fixtures.StockLot(med.ID, testutil.WithOnHand(10))
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, lot))

	repo := repository.NewLotRepository(ts.DB)
	_, err := repo.Reserve(ctx, med.ID, decimal.NewFromInt(11))
	assertAppCode(t, err, "INSUFFICIENT_STOCK")

	unchanged, err := repo.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.Reserved.IsZero())
}

func TestLotRepository_ReleaseAndConsume(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "lot-release-consume")
	med := suite.Fixtures.Medicine()
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, med))

	lot := suite.Fixtures.StockLot(med.ID, testutil.WithOnHand(100), testutil.WithReserved(40))
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, lot))

	repo := repository.NewLotRepository(ts.DB)

	released, err := repo.Release(ctx, lot.ID, decimal.NewFromInt(15))
	require.NoError(t, err)
	assert.True(t, released.Reserved.Equal(decimal.NewFromInt(25)))
	assert.True(t, released.OnHand.Equal(decimal.NewFromInt(100)))

	consumed, err := repo.Consume(ctx, lot.ID, decimal.NewFromInt(25))
	require.NoError(t, err)
	assert.True(t, consumed.Reserved.IsZero())
	assert.True(t, consumed.OnHand.Equal(decimal.NewFromInt(75)))
}

func TestLotRepository_OverReleaseAndOverConsume(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "lot-over")
	med := suite.Fixtures.Medicine()
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, med))

	lot := suite.Fixtures.StockLot(med.ID, testutil.WithOnHand(50), testutil.WithReserved(10))
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, lot))

	repo := repository.NewLotRepository(ts.DB)

	_, err := repo.Release(ctx, lot.ID, decimal.NewFromInt(11))
	assertAppCode(t, err, "OVER_RELEASE")

	_, err = repo.Consume(ctx, lot.ID, decimal.NewFromInt(11))
	assertAppCode(t, err, "OVER_CONSUME")

	// The guarded updates left the row untouched
	unchanged, err := repo.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.Reserved.Equal(decimal.NewFromInt(10)))
	assert.True(t, unchanged.OnHand.Equal(decimal.NewFromInt(50)))
}

func TestLotRepository_UpdateStatus_WritesAuditTrail(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "lot-status")
	med := suite.Fixtures.Medicine()
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, med))

	fixture := suite.Fixtures.StockLot(med.ID)
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, fixture))

	repo := repository.NewLotRepository(ts.DB)
	actor := "44444444-4444-4444-4444-444444444444"

	lot, adj, err := repo.UpdateStatus(ctx, fixture.ID, repository.LotStatusDamaged, "water damage in storage", actor)
	require.NoError(t, err)
	assert.Equal(t, repository.LotStatusDamaged, lot.Status)
	assert.Equal(t, repository.LotStatusAvailable, adj.FromStatus)
	assert.Equal(t, repository.LotStatusDamaged, adj.ToStatus)
	assert.Equal(t, actor, adj.PerformedBy)
	assert.False(t, adj.CreatedAt.IsZero())

	// Same-status transition is rejected
	_, _, err = repo.UpdateStatus(ctx, fixture.ID, repository.LotStatusDamaged, "again", actor)
	assertAppCode(t, err, "INVALID_STATE")

	adjs, err := repo.ListAdjustments(ctx, fixture.ID)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	assert.Equal(t, "water damage in storage", adjs[0].Reason)
}

func TestLotRepository_StockByMedicine_IncludesZeroStock(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "lot-rollup")
	stocked := suite.Fixtures.Medicine(testutil.WithMedicineName("Stocked"))
	empty := suite.Fixtures.Medicine(testutil.WithMedicineName("Empty"))
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, stocked))
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, empty))

	lotA := suite.Fixtures.StockLot(stocked.ID, testutil.WithOnHand(30), testutil.WithReserved(5))
	lotB := suite.Fixtures.StockLot(stocked.ID, testutil.WithOnHand(20))
	depleted := suite.Fixtures.StockLot(stocked.ID, testutil.WithBatchCode("DEPLETED"), testutil.WithOnHand(0))
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, lotA))
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, lotB))
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, depleted))

	repo := repository.NewLotRepository(ts.DB)
	rows, err := repo.StockByMedicine(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byName := map[string]*repository.MedicineStockRow{}
	for _, row := range rows {
		byName[row.Name] = row
	}

	require.Contains(t, byName, "Stocked")
	assert.True(t, byName["Stocked"].OnHand.Equal(decimal.NewFromInt(50)))
	assert.True(t, byName["Stocked"].Reserved.Equal(decimal.NewFromInt(5)))
	// The depleted lot holds no stock and is not counted
	assert.Equal(t, 2, byName["Stocked"].LotCount)

	require.Contains(t, byName, "Empty")
	assert.True(t, byName["Empty"].OnHand.IsZero())
	assert.Equal(t, 0, byName["Empty"].LotCount)
}

func TestLotRepository_ExpiringAndExpiredLots(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "lot-expiry")
	med := suite.Fixtures.Medicine()
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, med))

	now := time.Now()
	soon := suite.Fixtures.StockLot(med.ID, testutil.WithBatchCode("SOON"), testutil.WithExpiry(now.AddDate(0, 0, 10)))
	far := suite.Fixtures.StockLot(med.ID, testutil.WithBatchCode("FAR"), testutil.WithExpiry(now.AddDate(1, 0, 0)))
	gone := suite.Fixtures.StockLot(med.ID, testutil.WithBatchCode("GONE"), testutil.WithExpiry(now.AddDate(0, 0, -5)))
	for _, l := range []testutil.StockLotFixture{soon, far, gone} {
		require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, l))
	}

	repo := repository.NewLotRepository(ts.DB)

	expiring, err := repo.GetExpiringLots(ctx, 30)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "SOON", expiring[0].BatchCode)

	expired, err := repo.GetExpiredLots(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "GONE", expired[0].BatchCode)
}
