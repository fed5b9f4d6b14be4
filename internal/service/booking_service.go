// Package service orchestrates the booking creation transaction:
// validate, guard against duplicates, apply a voucher, persist, then
// enrich the booking with its waiver and QR ticket. Persist is the
// commit point; everything after it is forward-only and a failure
// there leaves a valid booking that staff can complete manually.
package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/nipark/booking/internal/domain"
	"github.com/nipark/booking/internal/dto"
	"github.com/nipark/booking/internal/metrics"
	"github.com/nipark/booking/internal/pricing"
	"github.com/nipark/booking/internal/ticket"
	"github.com/nipark/booking/internal/voucher"
	"github.com/nipark/booking/pkg/config"
	"github.com/nipark/booking/pkg/logger"
	"github.com/nipark/booking/pkg/telemetry"
)

const partyDurationMin = 120

// DataAPI is the persistence surface the service needs
type DataAPI interface {
	CreateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	FindBookings(ctx context.Context, email, date, slotTime string) ([]domain.Booking, error)
	GetBookingByUUID(ctx context.Context, uuid string) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, id int64, patch map[string]any) (*domain.Booking, error)
	FindVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error)
	UpdateVoucher(ctx context.Context, id int64, patch map[string]any) error
	CreateWaiver(ctx context.Context, w *domain.Waiver) (*domain.Waiver, error)
}

// BookingService is the public booking flow
type BookingService interface {
	CreateSessionBooking(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error)
	CreatePartyBooking(ctx context.Context, req *dto.CreatePartyBookingRequest) (*dto.PartyBookingCreatedResponse, error)
	ValidateVoucher(ctx context.Context, req *dto.ValidateVoucherRequest) (*dto.ValidateVoucherResponse, error)
	GetTicket(ctx context.Context, uuid string) (*dto.TicketResponse, error)
}

// ServiceConfig holds the booking service dependencies
type ServiceConfig struct {
	DataAPI    DataAPI
	Validator  *voucher.Validator
	Usage      voucher.UsageCounter
	Calculator *pricing.Calculator
	Tickets    *ticket.Generator
	Events     EventPublisher
	Booking    config.BookingConfig
	Logger     *logger.Logger
	Location   *time.Location
}

type bookingService struct {
	api     DataAPI
	voucher *voucher.Validator
	usage   voucher.UsageCounter
	calc    *pricing.Calculator
	tickets *ticket.Generator
	events  EventPublisher
	cfg     config.BookingConfig
	log     *logger.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewBookingService creates the booking service
func NewBookingService(cfg ServiceConfig) BookingService {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	events := cfg.Events
	if events == nil {
		events = NoOpEventPublisher{}
	}
	return &bookingService{
		api:     cfg.DataAPI,
		voucher: cfg.Validator,
		usage:   cfg.Usage,
		calc:    cfg.Calculator,
		tickets: cfg.Tickets,
		events:  events,
		cfg:     cfg.Booking,
		log:     cfg.Logger,
		loc:     loc,
		now:     time.Now,
	}
}

// CreateSessionBooking runs the full transaction for a play session
func (s *bookingService) CreateSessionBooking(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.create_session_booking")
	defer span.End()
	start := s.now()

	b, err := s.validateSession(req)
	if err != nil {
		metrics.RecordRejection(ctx, "validation")
		return nil, err
	}

	resp, err := s.create(ctx, b, req.VoucherCode, sessionWaiver(req, b))
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingDuration(ctx, s.now().Sub(start).Seconds(), string(domain.BookingTypeSession))
	return resp, nil
}

// CreatePartyBooking runs the full transaction for a party package
func (s *bookingService) CreatePartyBooking(ctx context.Context, req *dto.CreatePartyBookingRequest) (*dto.PartyBookingCreatedResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.create_party_booking")
	defer span.End()
	start := s.now()

	b, err := s.validateParty(req)
	if err != nil {
		metrics.RecordRejection(ctx, "validation")
		return nil, err
	}

	resp, err := s.create(ctx, b, req.VoucherCode, partyWaiver(req, b))
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingDuration(ctx, s.now().Sub(start).Seconds(), string(domain.BookingTypeParty))
	return &dto.PartyBookingCreatedResponse{
		BookingCreatedResponse: *resp,
		DepositAmount:          pricing.Round2(resp.Amount / 2),
	}, nil
}

// create is the shared transaction core. b carries validated,
// sanitized input plus the computed subtotal, tax and amount.
func (s *bookingService) create(ctx context.Context, b *domain.Booking, voucherCode string, w *domain.Waiver) (*dto.BookingCreatedResponse, error) {
	log := s.log.With(
		zap.String("email", b.Email),
		zap.String("date", b.Date),
		zap.String("time", b.Time),
		zap.String("type", string(b.Type)),
	)

	if err := s.checkDuplicate(ctx, b); err != nil {
		metrics.RecordRejection(ctx, "duplicate")
		return nil, err
	}

	// Voucher validation reserves a usage slot before any write, so a
	// capped voucher can never be oversubscribed by concurrent requests
	var vc *domain.Voucher
	if voucherCode != "" {
		res, err := s.voucher.Validate(ctx, voucherCode, b.Subtotal)
		if err != nil {
			metrics.RecordRejection(ctx, "voucher")
			return nil, err
		}
		if err := s.usage.Reserve(ctx, res.Voucher); err != nil {
			metrics.RecordRejection(ctx, "voucher")
			return nil, err
		}
		vc = res.Voucher
		b.VoucherCode = vc.Code
		b.VoucherID = vc.ID
		b.DiscountAmount = res.DiscountAmount
		b.Amount = pricing.Round2(b.Amount - res.DiscountAmount)
	}

	tax := pricing.Round2(b.Amount + b.DiscountAmount - b.Subtotal)
	telemetry.SetSpanAttributes(ctx,
		attribute.Float64("booking.amount", b.Amount),
		attribute.String("booking.type", string(b.Type)),
	)

	created, err := s.api.CreateBooking(ctx, b)
	if err != nil {
		if vc != nil {
			if relErr := s.usage.Release(ctx, vc); relErr != nil {
				log.Error("failed to release voucher reservation", zap.Error(relErr))
			}
		}
		log.Error("booking persist failed", zap.Error(err))
		telemetry.SetSpanError(ctx, err)
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	log = log.With(zap.Int64("booking_id", created.ID), zap.String("booking_uuid", created.UUID))
	log.Info("booking created")
	metrics.RecordBookingCreated(ctx, string(created.Type))

	// Commit point reached. Every step below is best-effort: log,
	// count, continue.
	if vc != nil {
		s.mirrorVoucherUsage(ctx, log, vc)
	}

	if w != nil {
		s.linkWaiver(ctx, log, created, w)
	}

	qr := s.attachTicket(ctx, log, created)

	if err := s.events.PublishBookingCreated(ctx, created); err != nil {
		log.Warn("failed to publish booking created event", zap.Error(err))
		metrics.RecordEnrichmentFailure(ctx, "events")
	}

	return &dto.BookingCreatedResponse{
		BookingID:      created.UUID,
		BookingNumber:  s.bookingNumber(created),
		Subtotal:       b.Subtotal,
		Tax:            tax,
		DiscountAmount: b.DiscountAmount,
		Amount:         b.Amount,
		QRCode:         qr,
	}, nil
}

// checkDuplicate rejects a submission when a booking with the same
// email, date and slot time was created inside the dedupe window
func (s *bookingService) checkDuplicate(ctx context.Context, b *domain.Booking) error {
	existing, err := s.api.FindBookings(ctx, b.Email, b.Date, b.Time)
	if err != nil {
		// The guard is advisory; an unreachable lookup must not block
		// the customer
		s.log.Warn("duplicate check lookup failed", zap.Error(err))
		return nil
	}

	cutoff := s.now().Add(-s.cfg.DedupeWindow)
	for i := range existing {
		if existing[i].CreatedAt.After(cutoff) {
			return domain.ErrDuplicateSubmission
		}
	}
	return nil
}

// mirrorVoucherUsage bumps the persisted used_count to match the
// reservation already taken in redis. The voucher is re-read first so
// concurrent redemptions that landed since validation are not lost;
// redis holds the authoritative count either way.
func (s *bookingService) mirrorVoucherUsage(ctx context.Context, log *logger.Logger, vc *domain.Voucher) {
	count := vc.UsedCount
	if fresh, err := s.api.FindVoucherByCode(ctx, vc.Code); err == nil {
		count = fresh.UsedCount
	}

	err := s.api.UpdateVoucher(ctx, vc.ID, map[string]any{"used_count": count + 1})
	if err != nil {
		log.Warn("failed to mirror voucher usage", zap.Int64("voucher_id", vc.ID), zap.Error(err))
		metrics.RecordEnrichmentFailure(ctx, "voucher_mirror")
		return
	}
	metrics.RecordVoucherRedeemed(ctx)
}

// linkWaiver persists the waiver and flips the booking's waiver status
func (s *bookingService) linkWaiver(ctx context.Context, log *logger.Logger, b *domain.Booking, w *domain.Waiver) {
	ctx, span := telemetry.StartSpan(ctx, "service.link_waiver")
	defer span.End()

	w.BookingID = b.ID
	w.SignedAt = s.now()

	if _, err := s.api.CreateWaiver(ctx, w); err != nil {
		log.Error("waiver create failed, booking left incomplete", zap.Error(err))
		metrics.RecordEnrichmentFailure(ctx, "waiver")
		return
	}

	if _, err := s.api.UpdateBooking(ctx, b.ID, map[string]any{"waiver_status": string(domain.WaiverStatusSigned)}); err != nil {
		log.Error("waiver status update failed, booking left incomplete", zap.Error(err))
		metrics.RecordEnrichmentFailure(ctx, "waiver_status")
		return
	}
	b.WaiverStatus = domain.WaiverStatusSigned
}

// attachTicket renders the QR ticket and stores it on the booking,
// returning the data URI (empty when rendering failed)
func (s *bookingService) attachTicket(ctx context.Context, log *logger.Logger, b *domain.Booking) string {
	ctx, span := telemetry.StartSpan(ctx, "service.attach_ticket")
	defer span.End()

	qr, err := s.tickets.DataURI(b)
	if err != nil {
		log.Error("ticket render failed, booking left incomplete", zap.Error(err))
		metrics.RecordEnrichmentFailure(ctx, "ticket")
		return ""
	}

	if _, err := s.api.UpdateBooking(ctx, b.ID, map[string]any{"qr_code": qr}); err != nil {
		log.Error("ticket attach failed, booking left incomplete", zap.Error(err))
		metrics.RecordEnrichmentFailure(ctx, "ticket_attach")
		return qr
	}
	b.QRCode = qr
	metrics.RecordTicketIssued(ctx)

	if err := s.events.PublishTicketIssued(ctx, b); err != nil {
		log.Warn("failed to publish ticket issued event", zap.Error(err))
		metrics.RecordEnrichmentFailure(ctx, "events")
	}
	return qr
}

// ValidateVoucher checks a code without reserving a usage slot, for
// pre-checkout validation in the booking form
func (s *bookingService) ValidateVoucher(ctx context.Context, req *dto.ValidateVoucherRequest) (*dto.ValidateVoucherResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.validate_voucher")
	defer span.End()

	res, err := s.voucher.Validate(ctx, req.Code, req.OrderAmount)
	if err != nil {
		if domain.IsVoucherRejection(err) {
			return &dto.ValidateVoucherResponse{Valid: false, Message: err.Error()}, nil
		}
		return nil, err
	}

	return &dto.ValidateVoucherResponse{
		Valid:          true,
		Code:           res.Voucher.Code,
		DiscountType:   string(res.Voucher.DiscountType),
		DiscountValue:  res.Voucher.DiscountValue,
		DiscountAmount: res.DiscountAmount,
	}, nil
}

// GetTicket returns the entry ticket for a booking by its uuid. When
// the stored QR is missing (an earlier attach failed) it is re-rendered
// on the fly.
func (s *bookingService) GetTicket(ctx context.Context, uuid string) (*dto.TicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.get_ticket")
	defer span.End()

	b, err := s.api.GetBookingByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}

	qr := b.QRCode
	if qr == "" {
		qr, err = s.tickets.DataURI(b)
		if err != nil {
			return nil, fmt.Errorf("failed to render ticket: %w", err)
		}
	}

	return &dto.TicketResponse{
		BookingNumber: s.bookingNumber(b),
		Name:          b.Name,
		Date:          b.Date,
		Time:          b.Time,
		Guests:        b.GuestCount(),
		Status:        string(b.Status),
		QRCode:        qr,
	}, nil
}

// bookingNumber derives the human-readable reference from the
// persisted id, so it can always be reconstructed and never collides
// within a day
func (s *bookingService) bookingNumber(b *domain.Booking) string {
	day := b.CreatedAt
	if day.IsZero() {
		day = s.now()
	}
	return fmt.Sprintf("%s-%s-%04d", s.cfg.NumberPrefix, day.In(s.loc).Format("20060102"), b.ID%10000)
}

func (s *bookingService) validateSession(req *dto.CreateBookingRequest) (*domain.Booking, error) {
	base, err := s.validateCommon(req.Name, req.Email, req.Phone, req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	if req.Adults+req.Kids <= 0 {
		return nil, domain.NewValidationError("guests", "at least one player is required")
	}

	q := s.calc.Session(pricing.GuestCounts{
		Adults:     req.Adults,
		Kids:       req.Kids,
		Spectators: req.Spectators,
	}, req.DurationMin)

	base.Type = domain.BookingTypeSession
	base.DurationMin = req.DurationMin
	base.Adults = req.Adults
	base.Kids = req.Kids
	base.Spectators = req.Spectators
	base.Subtotal = q.Subtotal
	base.Amount = q.Total
	base.Status = domain.BookingStatusConfirmed
	return base, nil
}

func (s *bookingService) validateParty(req *dto.CreatePartyBookingRequest) (*domain.Booking, error) {
	base, err := s.validateCommon(req.Name, req.Email, req.Phone, req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	q := s.calc.Party(req.Participants, req.Spectators)

	base.Type = domain.BookingTypeParty
	base.DurationMin = partyDurationMin
	base.Kids = req.Participants
	base.Spectators = req.Spectators
	base.Subtotal = q.Subtotal
	base.Amount = q.Total
	// Parties need staff confirmation and a deposit before they firm up
	base.Status = domain.BookingStatusPending
	return base, nil
}

// validateCommon sanitizes identity fields and checks the slot is not
// in the past. Every rejection happens before any side effect.
func (s *bookingService) validateCommon(name, email, phone, date, slotTime string) (*domain.Booking, error) {
	name = sanitizeName(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "name is required")
	}

	email = normalizeEmail(email)
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}

	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	date, err = normalizeDate(date)
	if err != nil {
		return nil, err
	}

	slotTime, err = normalizeTime(slotTime)
	if err != nil {
		return nil, err
	}

	slot, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+slotTime, s.loc)
	if err != nil {
		return nil, domain.NewValidationError("date", "invalid date or time")
	}
	if slot.Before(s.now()) {
		return nil, domain.NewValidationError("date", "bookings cannot be made for a past date or time")
	}

	return &domain.Booking{
		Name:          name,
		Email:         email,
		Phone:         phone,
		Date:          date,
		Time:          slotTime,
		PaymentStatus: domain.PaymentStatusPending,
		WaiverStatus:  domain.WaiverStatusPending,
	}, nil
}

// sessionWaiver builds the waiver signed with a session booking. The
// booker always signs for themselves; the request may add minors and
// extra adults.
func sessionWaiver(req *dto.CreateBookingRequest, b *domain.Booking) *domain.Waiver {
	w := &domain.Waiver{
		Name:    b.Name,
		Email:   b.Email,
		Phone:   b.Phone,
		Version: domain.WaiverVersion,
	}
	if req.Waiver != nil {
		w.DOB = req.Waiver.DOB
		w.Minors = minorsFromInput(req.Waiver.Minors)
		w.Adults = adultsFromInput(req.Waiver.Adults)
	}
	return w
}

// partyWaiver builds the waiver for a party booking when one was
// provided; parties may collect waivers closer to the event instead
func partyWaiver(req *dto.CreatePartyBookingRequest, b *domain.Booking) *domain.Waiver {
	if req.Waiver == nil {
		return nil
	}
	return &domain.Waiver{
		Name:    b.Name,
		Email:   b.Email,
		Phone:   b.Phone,
		DOB:     req.Waiver.DOB,
		Version: domain.WaiverVersion,
		Minors:  minorsFromInput(req.Waiver.Minors),
		Adults:  adultsFromInput(req.Waiver.Adults),
	}
}

func minorsFromInput(in []dto.MinorInput) []domain.Minor {
	out := make([]domain.Minor, 0, len(in))
	for _, m := range in {
		out = append(out, domain.Minor{
			Name:     sanitizeName(m.Name),
			DOB:      m.DOB,
			Guardian: sanitizeName(m.Guardian),
		})
	}
	return out
}

func adultsFromInput(in []dto.AdultGuestInput) []domain.AdultGuest {
	out := make([]domain.AdultGuest, 0, len(in))
	for _, a := range in {
		out = append(out, domain.AdultGuest{
			Name:  sanitizeName(a.Name),
			Email: normalizeEmail(a.Email),
			Phone: a.Phone,
			DOB:   a.DOB,
		})
	}
	return out
}
