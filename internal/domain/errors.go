package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Voucher rejections, in validation order
	ErrVoucherCodeRequired = errors.New("voucher code is required")
	ErrVoucherNotFound     = errors.New("invalid voucher code")
	ErrVoucherInactive     = errors.New("this voucher is no longer active")
	ErrVoucherExpired      = errors.New("this voucher has expired")
	ErrVoucherExhausted    = errors.New("this voucher has reached its usage limit")

	// Booking rejections
	ErrDuplicateSubmission = errors.New("a booking with these details was recently created; please check your email or contact support")
	ErrBookingNotFound     = errors.New("booking not found")
)

// ValidationError is a field-attributable input error. It is raised
// before any side effect, so a rejected submission never mutates state.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// MinOrderError rejects a voucher below its minimum order amount; the
// message carries the formatted minimum for display.
type MinOrderError struct {
	Minimum float64
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("minimum order of ₹%.2f required to use this voucher", e.Minimum)
}

// IsValidationError checks if the error is an input validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsVoucherRejection checks if the error is a voucher business rejection
func IsVoucherRejection(err error) bool {
	var moe *MinOrderError
	return errors.Is(err, ErrVoucherCodeRequired) ||
		errors.Is(err, ErrVoucherNotFound) ||
		errors.Is(err, ErrVoucherInactive) ||
		errors.Is(err, ErrVoucherExpired) ||
		errors.Is(err, ErrVoucherExhausted) ||
		errors.As(err, &moe)
}

// IsBusinessRejection checks if the error is any pre-write business
// rule rejection (safe to echo to the caller)
func IsBusinessRejection(err error) bool {
	return IsVoucherRejection(err) || errors.Is(err, ErrDuplicateSubmission)
}
