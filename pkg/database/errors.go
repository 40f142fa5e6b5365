package database

import (
	"strings"

	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/lib/pq"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})

	case strings.Contains(constraint, "unit_cost_non_negative"):
		return errors.Validation(map[string]string{
			"unit_cost": "must not be negative",
		})

	case strings.Contains(constraint, "reserved_within_on_hand"):
		// A guarded UPDATE slipped past its WHERE clause, or a concurrent
		// writer shrank the lot first. Either way the invariant held.
		return errors.ConcurrencyConflict("stock levels changed concurrently")

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: available, damaged, recalled",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapUniqueConstraint maps unique violations. Document numbers and sequence
// rows only collide when two writers race, so those map to a retryable
// conflict rather than a user error.
func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "doc_number"):
		return errors.ConcurrencyConflict("document number already allocated, retry the operation")
	case strings.Contains(constraint, "receiving_sequences"):
		return errors.ConcurrencyConflict("sequence row contention, retry the operation")
	case strings.Contains(constraint, "medicine_id_batch_code"):
		return errors.Conflict("a stock lot for this medicine and batch already exists")
	case strings.Contains(constraint, "code"):
		return errors.Conflict("a record with this code already exists")
	default:
		return errors.Conflict("a record with these values already exists")
	}
}
