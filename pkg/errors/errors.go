package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/agricare/agricare-backend/pkg/i18n"
)

// Standard error types
var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrBadRequest          = errors.New("bad request")
	ErrConflict            = errors.New("resource conflict")
	ErrInternal            = errors.New("internal server error")
	ErrValidation          = errors.New("validation error")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrEmptyDocument       = errors.New("document has no lines")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOverRelease         = errors.New("release exceeds reserved quantity")
	ErrOverConsume         = errors.New("consume exceeds reserved quantity")
	ErrConcurrencyConflict = errors.New("concurrent modification")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"` // i18n key for localization
	Params     map[string]string `json:"-"` // Parameters for i18n interpolation
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns a localized version of the error message
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// LocalizeWith returns a localized version using a specific localizer
func (e *AppError) LocalizeWith(l *i18n.Localizer) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return l.T(e.MessageKey, e.Params)
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithKey creates a new AppError with an i18n key
func NewWithKey(code string, messageKey string, statusCode int, params ...map[string]string) *AppError {
	var p map[string]string
	if len(params) > 0 {
		p = params[0]
	}
	return &AppError{
		Code:       code,
		Message:    i18n.T(messageKey, p), // Default message in English
		MessageKey: messageKey,
		Params:     p,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resource},
		StatusCode: http.StatusNotFound,
	}
}

// NotFoundWithKey creates a not found error with localized resource name
func NotFoundWithKey(resourceKey string) *AppError {
	resourceName := i18n.T("resources." + resourceKey)
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resourceName),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resourceName},
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		MessageKey: "errors.unauthorized",
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		MessageKey: "errors.forbidden",
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		MessageKey: "errors.bad_request",
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		MessageKey: "errors.conflict",
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		MessageKey: "errors.internal",
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		MessageKey: "errors.validation_failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidState signals an operation attempted against a document or lot whose
// current status does not allow it (e.g. posting a draft, editing a posted
// document).
func InvalidState(current, attempted string) *AppError {
	return &AppError{
		Err:        ErrInvalidState,
		Code:       "INVALID_STATE",
		Message:    fmt.Sprintf("cannot %s in status %s", attempted, current),
		MessageKey: "errors.invalid_state",
		Params:     map[string]string{"status": current, "operation": attempted},
		StatusCode: http.StatusConflict,
	}
}

// EmptyDocument signals an attempt to verify a receiving document with no lines.
func EmptyDocument() *AppError {
	return &AppError{
		Err:        ErrEmptyDocument,
		Code:       "EMPTY_DOCUMENT",
		Message:    "document has no lines",
		MessageKey: "errors.empty_document",
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// InsufficientStock signals that a reservation could not be satisfied from the
// available, unexpired lots of a medicine.
func InsufficientStock(requested, available string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock: requested %s, available %s", requested, available),
		MessageKey: "errors.insufficient_stock",
		Params:     map[string]string{"requested": requested, "available": available},
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// OverRelease signals a release of more than the lot's reserved quantity.
func OverRelease(requested, reserved string) *AppError {
	return &AppError{
		Err:        ErrOverRelease,
		Code:       "OVER_RELEASE",
		Message:    fmt.Sprintf("cannot release %s: only %s reserved", requested, reserved),
		MessageKey: "errors.over_release",
		Params:     map[string]string{"requested": requested, "reserved": reserved},
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// OverConsume signals a consume of more than the lot's reserved quantity.
func OverConsume(requested, reserved string) *AppError {
	return &AppError{
		Err:        ErrOverConsume,
		Code:       "OVER_CONSUME",
		Message:    fmt.Sprintf("cannot consume %s: only %s reserved", requested, reserved),
		MessageKey: "errors.over_consume",
		Params:     map[string]string{"requested": requested, "reserved": reserved},
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// ConcurrencyConflict signals that a concurrent writer got there first, e.g. a
// duplicate document number or a lost status race. Safe to retry.
func ConcurrencyConflict(message string) *AppError {
	return &AppError{
		Err:        ErrConcurrencyConflict,
		Code:       "CONCURRENCY_CONFLICT",
		Message:    message,
		MessageKey: "errors.concurrency_conflict",
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
