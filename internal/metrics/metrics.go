// Package metrics defines the service's instruments.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nipark/booking/pkg/telemetry"
)

var (
	initOnce sync.Once

	// BookingsCreated counts successfully persisted bookings by type
	BookingsCreated *telemetry.Counter

	// BookingsRejected counts rejected submissions by reason
	BookingsRejected *telemetry.Counter

	// EnrichmentFailures counts post-persist steps that failed and were
	// skipped (waiver, status flip, qr, voucher mirror, events)
	EnrichmentFailures *telemetry.Counter

	// VouchersRedeemed counts voucher usage reservations that stuck
	VouchersRedeemed *telemetry.Counter

	// TicketsIssued counts QR tickets rendered
	TicketsIssued *telemetry.Counter

	// BookingDuration measures end-to-end booking creation in seconds
	BookingDuration *telemetry.Histogram
)

// Init creates all instruments. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		BookingsCreated, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "bookings_created_total",
			Description: "Bookings successfully persisted",
		})
		BookingsRejected, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "bookings_rejected_total",
			Description: "Booking submissions rejected before persist",
		})
		EnrichmentFailures, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "booking_enrichment_failures_total",
			Description: "Post-persist enrichment steps that failed",
		})
		VouchersRedeemed, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "vouchers_redeemed_total",
			Description: "Voucher redemptions reserved and kept",
		})
		TicketsIssued, _ = telemetry.NewCounter(telemetry.MetricOpts{
			Name:        "tickets_issued_total",
			Description: "QR entry tickets rendered",
		})
		BookingDuration, _ = telemetry.NewHistogram(telemetry.MetricOpts{
			Name:        "booking_create_duration_seconds",
			Description: "End to end booking creation latency",
			Unit:        "s",
		})
	})
}

// RecordBookingCreated increments the created counter with a type label
func RecordBookingCreated(ctx context.Context, bookingType string) {
	if BookingsCreated != nil {
		BookingsCreated.Inc(ctx, attribute.String("type", bookingType))
	}
}

// RecordRejection increments the rejection counter with a reason label
func RecordRejection(ctx context.Context, reason string) {
	if BookingsRejected != nil {
		BookingsRejected.Inc(ctx, attribute.String("reason", reason))
	}
}

// RecordEnrichmentFailure increments the enrichment failure counter
// with a step label
func RecordEnrichmentFailure(ctx context.Context, step string) {
	if EnrichmentFailures != nil {
		EnrichmentFailures.Inc(ctx, attribute.String("step", step))
	}
}

// RecordVoucherRedeemed increments the redemption counter
func RecordVoucherRedeemed(ctx context.Context) {
	if VouchersRedeemed != nil {
		VouchersRedeemed.Inc(ctx)
	}
}

// RecordTicketIssued increments the tickets counter
func RecordTicketIssued(ctx context.Context) {
	if TicketsIssued != nil {
		TicketsIssued.Inc(ctx)
	}
}

// RecordBookingDuration records end-to-end creation latency
func RecordBookingDuration(ctx context.Context, seconds float64, bookingType string) {
	if BookingDuration != nil {
		BookingDuration.Record(ctx, seconds, attribute.String("type", bookingType))
	}
}
