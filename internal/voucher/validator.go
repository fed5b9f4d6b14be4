// Package voucher validates promotional codes and computes discounts.
package voucher

import (
	"context"
	"strings"
	"time"

	"github.com/nipark/booking/internal/domain"
	"github.com/nipark/booking/internal/pricing"
)

// Store looks up vouchers by code. Returns domain.ErrVoucherNotFound
// when no voucher matches.
type Store interface {
	FindByCode(ctx context.Context, code string) (*domain.Voucher, error)
}

// StoreFunc adapts a lookup function to the Store interface
type StoreFunc func(ctx context.Context, code string) (*domain.Voucher, error)

func (f StoreFunc) FindByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	return f(ctx, code)
}

// UsageCounter reserves and releases redemptions against a voucher's
// usage cap. Reserve must be atomic so concurrent bookings cannot
// oversubscribe a limited voucher.
type UsageCounter interface {
	// Reserve claims one redemption. Returns domain.ErrVoucherExhausted
	// when the cap is already reached.
	Reserve(ctx context.Context, v *domain.Voucher) error
	// Release returns a previously reserved redemption, used when the
	// booking write fails after reservation.
	Release(ctx context.Context, v *domain.Voucher) error
}

// Result is a successful validation outcome
type Result struct {
	Voucher        *domain.Voucher
	DiscountAmount float64
}

// Validator checks a voucher code against an order amount. Checks run
// in a fixed order and stop at the first failure, so the caller always
// sees the most specific rejection.
type Validator struct {
	store Store
	now   func() time.Time
}

// NewValidator creates a Validator backed by the given store
func NewValidator(store Store) *Validator {
	return &Validator{store: store, now: time.Now}
}

// Validate checks code against orderAmount and returns the voucher
// with its computed discount. orderAmount is the pre-tax subtotal.
//
// Check order: presence, existence, active flag, expiry, usage limit,
// minimum order amount.
func (v *Validator) Validate(ctx context.Context, code string, orderAmount float64) (*Result, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrVoucherCodeRequired
	}

	vc, err := v.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !vc.IsActive {
		return nil, domain.ErrVoucherInactive
	}

	if vc.Expired(v.now()) {
		return nil, domain.ErrVoucherExpired
	}

	if vc.HasUsageLimit() && vc.UsedCount >= *vc.UsageLimit {
		return nil, domain.ErrVoucherExhausted
	}

	if vc.MinOrderAmount != nil && orderAmount < *vc.MinOrderAmount {
		return nil, &domain.MinOrderError{Minimum: *vc.MinOrderAmount}
	}

	return &Result{
		Voucher:        vc,
		DiscountAmount: Discount(vc, orderAmount),
	}, nil
}

// Discount computes the discount a voucher grants on orderAmount. The
// result is clamped to the order amount and rounded to two decimals.
func Discount(v *domain.Voucher, orderAmount float64) float64 {
	var d float64
	switch v.DiscountType {
	case domain.DiscountTypePercentage:
		d = orderAmount * v.DiscountValue / 100
	case domain.DiscountTypeFixed:
		d = v.DiscountValue
	default:
		return 0
	}

	if d > orderAmount {
		d = orderAmount
	}
	if d < 0 {
		d = 0
	}

	return pricing.Round2(d)
}
