package domain

import "time"

// DiscountType is how a voucher's value is interpreted
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// Voucher is a promotional code as persisted by the data API.
// Codes are stored upper-case; lookups are case-insensitive.
type Voucher struct {
	ID            int64        `json:"id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue float64      `json:"discount_value"`

	MinOrderAmount *float64   `json:"min_order_amount,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	UsageLimit     *int       `json:"usage_limit,omitempty"`
	UsedCount      int        `json:"used_count"`
	IsActive       bool       `json:"is_active"`
}

// HasUsageLimit reports whether redemptions are capped
func (v *Voucher) HasUsageLimit() bool {
	return v.UsageLimit != nil && *v.UsageLimit > 0
}

// Expired reports whether the voucher's expiry has passed at now
func (v *Voucher) Expired(now time.Time) bool {
	return v.ExpiryDate != nil && v.ExpiryDate.Before(now)
}
