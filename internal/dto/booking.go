// Package dto defines the request and response shapes of the HTTP API.
package dto

// MinorInput is a child listed on a waiver
type MinorInput struct {
	Name     string `json:"name" binding:"required"`
	DOB      string `json:"dob,omitempty"`
	Guardian string `json:"guardian,omitempty"`
}

// AdultGuestInput is an additional adult listed on a waiver
type AdultGuestInput struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	DOB   string `json:"dob,omitempty"`
}

// WaiverInput is the liability waiver signed alongside a booking
type WaiverInput struct {
	DOB    string            `json:"dob,omitempty"`
	Minors []MinorInput      `json:"minors,omitempty"`
	Adults []AdultGuestInput `json:"adults,omitempty"`
}

// CreateBookingRequest creates a session booking. The amount field is
// accepted for backwards compatibility with older clients but ignored;
// charges are always computed server-side.
type CreateBookingRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required"`

	Date        string `json:"date" binding:"required"`
	Time        string `json:"time" binding:"required"`
	DurationMin int    `json:"duration" binding:"required,min=30"`

	Adults     int `json:"adults" binding:"min=0"`
	Kids       int `json:"kids" binding:"min=0"`
	Spectators int `json:"spectators" binding:"min=0"`

	VoucherCode string  `json:"voucher_code,omitempty"`
	Amount      float64 `json:"amount,omitempty"`

	Waiver *WaiverInput `json:"waiver,omitempty"`
}

// CreatePartyBookingRequest creates a party package booking
type CreatePartyBookingRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required"`

	Date string `json:"date" binding:"required"`
	Time string `json:"time" binding:"required"`

	Participants int `json:"participants" binding:"required,min=1"`
	Spectators   int `json:"spectators" binding:"min=0"`

	BirthdayChild string `json:"birthday_child,omitempty"`
	Notes         string `json:"notes,omitempty"`

	VoucherCode string `json:"voucher_code,omitempty"`

	Waiver *WaiverInput `json:"waiver,omitempty"`
}

// ValidateVoucherRequest checks a voucher code against an order amount
type ValidateVoucherRequest struct {
	Code        string  `json:"code" binding:"required"`
	OrderAmount float64 `json:"order_amount" binding:"required,gt=0"`
}

// ValidateVoucherResponse is the outcome of a voucher check
type ValidateVoucherResponse struct {
	Valid          bool    `json:"valid"`
	Code           string  `json:"code,omitempty"`
	DiscountType   string  `json:"discount_type,omitempty"`
	DiscountValue  float64 `json:"discount_value,omitempty"`
	DiscountAmount float64 `json:"discount_amount,omitempty"`
	Message        string  `json:"message,omitempty"`
}

// BookingCreatedResponse is returned after a successful booking
type BookingCreatedResponse struct {
	BookingID      string  `json:"booking_id"`
	BookingNumber  string  `json:"booking_number"`
	Subtotal       float64 `json:"subtotal"`
	Tax            float64 `json:"tax"`
	DiscountAmount float64 `json:"discount_amount,omitempty"`
	Amount         float64 `json:"amount"`
	QRCode         string  `json:"qr_code,omitempty"`
}

// PartyBookingCreatedResponse is returned after a successful party
// booking; the deposit is half the total, due to confirm the slot
type PartyBookingCreatedResponse struct {
	BookingCreatedResponse
	DepositAmount float64 `json:"deposit_amount"`
}

// TicketResponse is the entry ticket for a booking
type TicketResponse struct {
	BookingNumber string `json:"booking_number"`
	Name          string `json:"name"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Guests        int    `json:"guests"`
	Status        string `json:"status"`
	QRCode        string `json:"qr_code"`
}
