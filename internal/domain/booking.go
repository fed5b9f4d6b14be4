package domain

import "time"

// BookingType discriminates the two reservation products
type BookingType string

const (
	BookingTypeSession BookingType = "SESSION"
	BookingTypeParty   BookingType = "PARTY"
)

// BookingStatus is the reservation lifecycle status
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// PaymentStatus tracks payment settlement
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
)

// WaiverStatus tracks whether a liability waiver is on file
type WaiverStatus string

const (
	WaiverStatusPending WaiverStatus = "PENDING"
	WaiverStatusSigned  WaiverStatus = "SIGNED"
)

// Booking is one reservation as persisted by the data API. The integer
// id is the primary identifier; the uuid is the opaque external-facing
// one used on tickets. Money fields are always server-computed.
//
// Party bookings repurpose Kids as the participant count.
type Booking struct {
	ID       int64       `json:"id"`
	UUID     string      `json:"uuid"`
	Type     BookingType `json:"type"`

	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`

	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM:SS, 24-hour
	DurationMin int    `json:"duration"`

	Adults     int `json:"adults"`
	Kids       int `json:"kids"`
	Spectators int `json:"spectators"`

	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	Amount         float64 `json:"amount"` // subtotal + tax - discount

	VoucherCode string `json:"voucher_code,omitempty"`
	VoucherID   int64  `json:"voucher,omitempty"`

	Status        BookingStatus `json:"booking_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	WaiverStatus  WaiverStatus  `json:"waiver_status"`

	QRCode string `json:"qr_code,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// GuestCount returns the total headcount on the booking
func (b *Booking) GuestCount() int {
	return b.Adults + b.Kids + b.Spectators
}

// SlotTime parses the booking's date and time in the given location
func (b *Booking) SlotTime(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04:05", b.Date+" "+b.Time, loc)
}
