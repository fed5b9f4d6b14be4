// Package ticket renders booking entry tickets as QR code images.
package ticket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/nipark/booking/internal/domain"
)

const qrImageSize = 300

// Payload is the data encoded into a ticket QR code. Field order is
// fixed so the same booking always yields the same image.
type Payload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Guests int    `json:"guests"`
}

// PayloadFor builds the QR payload for a booking. The external uuid
// identifies the booking; the integer id never leaves the system.
func PayloadFor(b *domain.Booking) Payload {
	return Payload{
		ID:     b.UUID,
		Name:   b.Name,
		Date:   b.Date,
		Time:   b.Time,
		Guests: b.GuestCount(),
	}
}

// Generator renders QR code tickets
type Generator struct{}

// NewGenerator creates a ticket Generator
func NewGenerator() *Generator {
	return &Generator{}
}

// DataURI renders the booking's ticket as a base64 PNG data URI,
// suitable for embedding directly in an img tag or email. High error
// correction keeps the code scannable when printed small.
func (g *Generator) DataURI(b *domain.Booking) (string, error) {
	payload, err := json.Marshal(PayloadFor(b))
	if err != nil {
		return "", fmt.Errorf("failed to encode ticket payload: %w", err)
	}

	png, err := qrcode.Encode(string(payload), qrcode.High, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("failed to render qr code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
