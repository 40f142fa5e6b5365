package repository

import (
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// LotAllocation is one lot's share of a reservation plan
type LotAllocation struct {
	LotID     string          `json:"lot_id"`
	BatchCode string          `json:"batch_code"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// PlanReservation splits a requested quantity across the given lots in
// first-expiry-first-out order. Lots must already be sorted by ascending
// expiry date; the planner walks them in order and takes what each lot has
// free (on_hand - reserved) until the request is covered.
//
// The plan is all-or-nothing: if the lots cannot cover the full quantity,
// no allocations are returned and the error carries the shortfall.
func PlanReservation(lots []*StockLot, quantity decimal.Decimal) ([]LotAllocation, error) {
	remaining := quantity
	allocations := make([]LotAllocation, 0, len(lots))

	for _, lot := range lots {
		if remaining.IsZero() {
			break
		}

		free := lot.OnHand.Sub(lot.Reserved)
		if free.LessThanOrEqual(decimal.Zero) {
			continue
		}

		take := decimal.Min(free, remaining)
		allocations = append(allocations, LotAllocation{
			LotID:     lot.ID,
			BatchCode: lot.BatchCode,
			Quantity:  take,
		})
		remaining = remaining.Sub(take)
	}

	if remaining.GreaterThan(decimal.Zero) {
		available := quantity.Sub(remaining)
		return nil, errors.InsufficientStock(quantity.String(), available.String())
	}

	return allocations, nil
}
