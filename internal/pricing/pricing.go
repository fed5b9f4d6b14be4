// Package pricing computes booking charges from the venue rate table.
// All amounts flow through as full-precision float64 and are rounded
// to two decimals only at quote boundaries.
package pricing

import (
	"math"

	"github.com/nipark/booking/pkg/config"
)

// GuestCounts is the headcount input for a session quote
type GuestCounts struct {
	Adults     int
	Kids       int
	Spectators int
}

// Total returns the combined headcount
func (g GuestCounts) Total() int {
	return g.Adults + g.Kids + g.Spectators
}

// Quote is a fully computed price breakdown. Total is always
// Subtotal + Tax; voucher discounts are applied by the caller after
// the quote is produced.
type Quote struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Calculator prices bookings against a configured rate table
type Calculator struct {
	rates config.PricingConfig
}

// NewCalculator creates a Calculator with the given rate table
func NewCalculator(rates config.PricingConfig) *Calculator {
	return &Calculator{rates: rates}
}

// Session prices a regular play session. Players (kids and adults) in
// the extended duration tier pay a flat per-player surcharge;
// spectators never do.
func (c *Calculator) Session(guests GuestCounts, durationMin int) Quote {
	subtotal := float64(guests.Kids)*c.rates.KidRate +
		float64(guests.Adults)*c.rates.AdultRate +
		float64(guests.Spectators)*c.rates.SpectatorRate

	if durationMin >= c.rates.ExtendedDurationMin {
		subtotal += float64(guests.Kids+guests.Adults) * c.rates.ExtendedSurcharge
	}

	return c.quote(subtotal)
}

// Party prices a party package. The package includes a spectator
// allowance; only spectators beyond it are charged.
func (c *Calculator) Party(participants, spectators int) Quote {
	subtotal := float64(participants) * c.rates.PartyParticipantRate

	if extra := spectators - c.rates.PartyFreeSpectators; extra > 0 {
		subtotal += float64(extra) * c.rates.PartyExtraSpectator
	}

	return c.quote(subtotal)
}

// Tax returns the tax due on an amount, rounded to two decimals
func (c *Calculator) Tax(amount float64) float64 {
	return Round2(amount * c.rates.TaxRate)
}

// TaxRate returns the configured tax fraction
func (c *Calculator) TaxRate() float64 {
	return c.rates.TaxRate
}

func (c *Calculator) quote(subtotal float64) Quote {
	tax := subtotal * c.rates.TaxRate
	return Quote{
		Subtotal: Round2(subtotal),
		Tax:      Round2(tax),
		Total:    Round2(subtotal + tax),
	}
}

// Round2 rounds to two decimal places, half away from zero
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
