package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nipark/booking/internal/domain"
	"github.com/nipark/booking/pkg/kafka"
)

// Event types published to the booking topic
const (
	EventBookingCreated = "booking.created"
	EventTicketIssued   = "booking.ticket_issued"
)

// BookingEvent is the lifecycle event envelope
type BookingEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`

	BookingID     int64   `json:"booking_id"`
	BookingUUID   string  `json:"booking_uuid"`
	BookingType   string  `json:"booking_type"`
	Email         string  `json:"email"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Guests        int     `json:"guests"`
	Amount        float64 `json:"amount"`
	VoucherCode   string  `json:"voucher_code,omitempty"`
	BookingStatus string  `json:"booking_status"`
}

// EventPublisher emits booking lifecycle events. Publishing is
// best-effort; callers log failures and continue.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, b *domain.Booking) error
	PublishTicketIssued(ctx context.Context, b *domain.Booking) error
}

// KafkaEventPublisher publishes events to a Kafka topic, keyed by the
// booking uuid so one booking's events stay ordered
type KafkaEventPublisher struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a publisher for the given topic
func NewKafkaEventPublisher(producer *kafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishBookingCreated(ctx context.Context, b *domain.Booking) error {
	return p.publish(ctx, EventBookingCreated, b)
}

func (p *KafkaEventPublisher) PublishTicketIssued(ctx context.Context, b *domain.Booking) error {
	return p.publish(ctx, EventTicketIssued, b)
}

func (p *KafkaEventPublisher) publish(ctx context.Context, eventType string, b *domain.Booking) error {
	event := BookingEvent{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		BookingID:     b.ID,
		BookingUUID:   b.UUID,
		BookingType:   string(b.Type),
		Email:         b.Email,
		Date:          b.Date,
		Time:          b.Time,
		Guests:        b.GuestCount(),
		Amount:        b.Amount,
		VoucherCode:   b.VoucherCode,
		BookingStatus: string(b.Status),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return p.producer.Produce(ctx, &kafka.Message{
		Topic: p.topic,
		Key:   []byte(b.UUID),
		Value: value,
		Headers: map[string]string{
			"event_type": eventType,
		},
		Timestamp: event.OccurredAt,
	})
}

// NoOpEventPublisher drops all events, used when Kafka is unavailable
type NoOpEventPublisher struct{}

func (NoOpEventPublisher) PublishBookingCreated(ctx context.Context, b *domain.Booking) error {
	return nil
}

func (NoOpEventPublisher) PublishTicketIssued(ctx context.Context, b *domain.Booking) error {
	return nil
}
