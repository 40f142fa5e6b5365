package repository_test

import (
	"testing"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lot(id, batch string, onHand, reserved int64, expiry time.Time) *repository.StockLot {
	return &repository.StockLot{
		ID:         id,
		BatchCode:  batch,
		OnHand:     decimal.NewFromInt(onHand),
		Reserved:   decimal.NewFromInt(reserved),
		ExpiryDate: expiry,
		Status:     repository.LotStatusAvailable,
	}
}

func TestPlanReservation_SingleLot(t *testing.T) {
	expiry := time.Now().AddDate(0, 6, 0)
	lots := []*repository.StockLot{lot("a", "B-1", 100, 0, expiry)}

	plan, err := repository.PlanReservation(lots, decimal.NewFromInt(30))
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "a", plan[0].LotID)
	assert.True(t, plan[0].Quantity.Equal(decimal.NewFromInt(30)))
}

func TestPlanReservation_SpansLotsInExpiryOrder(t *testing.T) {
	now := time.Now()
	// Sorted ascending by expiry, as the locking query guarantees
	lots := []*repository.StockLot{
		lot("earliest", "B-1", 20, 0, now.AddDate(0, 1, 0)),
		lot("middle", "B-2", 50, 0, now.AddDate(0, 3, 0)),
		lot("latest", "B-3", 100, 0, now.AddDate(0, 9, 0)),
	}

	plan, err := repository.PlanReservation(lots, decimal.NewFromInt(60))
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, "earliest", plan[0].LotID)
	assert.True(t, plan[0].Quantity.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "middle", plan[1].LotID)
	assert.True(t, plan[1].Quantity.Equal(decimal.NewFromInt(40)))
}

func TestPlanReservation_CountsOnlyFreeQuantity(t *testing.T) {
	now := time.Now()
	lots := []*repository.StockLot{
		lot("a", "B-1", 30, 25, now.AddDate(0, 1, 0)), // 5 free
		lot("b", "B-2", 40, 0, now.AddDate(0, 2, 0)),
	}

	plan, err := repository.PlanReservation(lots, decimal.NewFromInt(20))
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.True(t, plan[0].Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, plan[1].Quantity.Equal(decimal.NewFromInt(15)))
}

func TestPlanReservation_SkipsFullyReservedLots(t *testing.T) {
	now := time.Now()
	lots := []*repository.StockLot{
		lot("full", "B-1", 10, 10, now.AddDate(0, 1, 0)),
		lot("free", "B-2", 10, 0, now.AddDate(0, 2, 0)),
	}

	plan, err := repository.PlanReservation(lots, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "free", plan[0].LotID)
}

func TestPlanReservation_InsufficientStockIsAllOrNothing(t *testing.T) {
	now := time.Now()
	lots := []*repository.StockLot{
		lot("a", "B-1", 10, 0, now.AddDate(0, 1, 0)),
		lot("b", "B-2", 5, 2, now.AddDate(0, 2, 0)),
	}

	plan, err := repository.PlanReservation(lots, decimal.NewFromInt(20))
	require.Error(t, err)
	assert.Nil(t, plan)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "20", appErr.Params["requested"])
	assert.Equal(t, "13", appErr.Params["available"])
}

func TestPlanReservation_NoLots(t *testing.T) {
	plan, err := repository.PlanReservation(nil, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Nil(t, plan)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "0", appErr.Params["available"])
}
