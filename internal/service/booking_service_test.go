package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nipark/booking/internal/domain"
	"github.com/nipark/booking/internal/dto"
	"github.com/nipark/booking/internal/pricing"
	"github.com/nipark/booking/internal/ticket"
	"github.com/nipark/booking/internal/voucher"
	"github.com/nipark/booking/pkg/config"
	"github.com/nipark/booking/pkg/logger"
)

type mockDataAPI struct {
	createBookingFunc     func(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	findBookingsFunc      func(ctx context.Context, email, date, slotTime string) ([]domain.Booking, error)
	getBookingByUUIDFunc  func(ctx context.Context, uuid string) (*domain.Booking, error)
	updateBookingFunc     func(ctx context.Context, id int64, patch map[string]any) (*domain.Booking, error)
	findVoucherByCodeFunc func(ctx context.Context, code string) (*domain.Voucher, error)
	updateVoucherFunc     func(ctx context.Context, id int64, patch map[string]any) error
	createWaiverFunc      func(ctx context.Context, w *domain.Waiver) (*domain.Waiver, error)
}

func (m *mockDataAPI) CreateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	return m.createBookingFunc(ctx, b)
}

func (m *mockDataAPI) FindBookings(ctx context.Context, email, date, slotTime string) ([]domain.Booking, error) {
	if m.findBookingsFunc == nil {
		return nil, nil
	}
	return m.findBookingsFunc(ctx, email, date, slotTime)
}

func (m *mockDataAPI) GetBookingByUUID(ctx context.Context, uuid string) (*domain.Booking, error) {
	return m.getBookingByUUIDFunc(ctx, uuid)
}

func (m *mockDataAPI) UpdateBooking(ctx context.Context, id int64, patch map[string]any) (*domain.Booking, error) {
	if m.updateBookingFunc == nil {
		return &domain.Booking{ID: id}, nil
	}
	return m.updateBookingFunc(ctx, id, patch)
}

func (m *mockDataAPI) FindVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	return m.findVoucherByCodeFunc(ctx, code)
}

func (m *mockDataAPI) UpdateVoucher(ctx context.Context, id int64, patch map[string]any) error {
	if m.updateVoucherFunc == nil {
		return nil
	}
	return m.updateVoucherFunc(ctx, id, patch)
}

func (m *mockDataAPI) CreateWaiver(ctx context.Context, w *domain.Waiver) (*domain.Waiver, error) {
	if m.createWaiverFunc == nil {
		return w, nil
	}
	return m.createWaiverFunc(ctx, w)
}

type mockUsage struct {
	reserveFunc func(ctx context.Context, v *domain.Voucher) error
	releaseFunc func(ctx context.Context, v *domain.Voucher) error

	reserved int
	released int
}

func (m *mockUsage) Reserve(ctx context.Context, v *domain.Voucher) error {
	m.reserved++
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, v)
	}
	return nil
}

func (m *mockUsage) Release(ctx context.Context, v *domain.Voucher) error {
	m.released++
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, v)
	}
	return nil
}

type mockEvents struct {
	created []string
	tickets []string
	err     error
}

func (m *mockEvents) PublishBookingCreated(ctx context.Context, b *domain.Booking) error {
	m.created = append(m.created, b.UUID)
	return m.err
}

func (m *mockEvents) PublishTicketIssued(ctx context.Context, b *domain.Booking) error {
	m.tickets = append(m.tickets, b.UUID)
	return m.err
}

var testNow = time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

type fixture struct {
	api    *mockDataAPI
	usage  *mockUsage
	events *mockEvents
	svc    *bookingService
}

func newFixture(api *mockDataAPI) *fixture {
	usage := &mockUsage{}
	events := &mockEvents{}

	store := voucher.StoreFunc(func(ctx context.Context, code string) (*domain.Voucher, error) {
		return api.FindVoucherByCode(ctx, code)
	})

	svc := NewBookingService(ServiceConfig{
		DataAPI:   api,
		Validator: voucher.NewValidator(store),
		Usage:     usage,
		Calculator: pricing.NewCalculator(config.PricingConfig{
			KidRate:              500,
			AdultRate:            899,
			SpectatorRate:        150,
			ExtendedSurcharge:    500,
			ExtendedDurationMin:  120,
			PartyParticipantRate: 1500,
			PartyExtraSpectator:  100,
			PartyFreeSpectators:  10,
			TaxRate:              0.18,
		}),
		Tickets: ticket.NewGenerator(),
		Events:  events,
		Booking: config.BookingConfig{
			NumberPrefix: "NIP",
			DedupeWindow: 5 * time.Minute,
		},
		Logger:   logger.Get(),
		Location: time.UTC,
	}).(*bookingService)
	svc.now = func() time.Time { return testNow }

	return &fixture{api: api, usage: usage, events: events, svc: svc}
}

func echoCreate(id int64) func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	return func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
		created := *b
		created.ID = id
		created.UUID = "uuid-42"
		created.CreatedAt = testNow
		return &created, nil
	}
}

func sessionRequest() *dto.CreateBookingRequest {
	return &dto.CreateBookingRequest{
		Name:        "Priya Sharma",
		Email:       "Priya@Example.com",
		Phone:       "+91 98765 43210",
		Date:        "2026-09-01",
		Time:        "2:00 PM",
		DurationMin: 60,
		Adults:      2,
		Kids:        1,
	}
}

func TestCreateSessionBooking_HappyPath(t *testing.T) {
	var persisted *domain.Booking
	var patches []map[string]any
	var savedWaiver *domain.Waiver

	api := &mockDataAPI{
		createBookingFunc: func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
			persisted = b
			return echoCreate(12042)(ctx, b)
		},
		updateBookingFunc: func(ctx context.Context, id int64, patch map[string]any) (*domain.Booking, error) {
			patches = append(patches, patch)
			return &domain.Booking{ID: id}, nil
		},
		createWaiverFunc: func(ctx context.Context, w *domain.Waiver) (*domain.Waiver, error) {
			savedWaiver = w
			return w, nil
		},
	}
	f := newFixture(api)

	resp, err := f.svc.CreateSessionBooking(context.Background(), sessionRequest())
	require.NoError(t, err)

	// Server-side pricing, client amount ignored
	require.NotNil(t, persisted)
	assert.Equal(t, 2298.0, persisted.Subtotal)
	assert.Equal(t, 2711.64, persisted.Amount)
	assert.Equal(t, domain.BookingStatusConfirmed, persisted.Status)
	assert.Equal(t, domain.PaymentStatusPending, persisted.PaymentStatus)
	assert.Equal(t, domain.WaiverStatusPending, persisted.WaiverStatus)

	// Input normalized before persist
	assert.Equal(t, "priya@example.com", persisted.Email)
	assert.Equal(t, "9876543210", persisted.Phone)
	assert.Equal(t, "14:00:00", persisted.Time)

	// Waiver created and status flipped, QR attached
	require.NotNil(t, savedWaiver)
	assert.Equal(t, int64(12042), savedWaiver.BookingID)
	assert.Equal(t, domain.WaiverVersion, savedWaiver.Version)
	require.Len(t, patches, 2)
	assert.Equal(t, "SIGNED", patches[0]["waiver_status"])
	assert.Contains(t, patches[1]["qr_code"], "data:image/png;base64,")

	assert.Equal(t, "uuid-42", resp.BookingID)
	assert.Equal(t, "NIP-20260829-2042", resp.BookingNumber)
	assert.Equal(t, 2298.0, resp.Subtotal)
	assert.Equal(t, 413.64, resp.Tax)
	assert.Equal(t, 2711.64, resp.Amount)
	assert.True(t, strings.HasPrefix(resp.QRCode, "data:image/png;base64,"))

	assert.Equal(t, []string{"uuid-42"}, f.events.created)
	assert.Equal(t, []string{"uuid-42"}, f.events.tickets)
}

func TestCreateSessionBooking_ClientAmountIgnored(t *testing.T) {
	var persisted *domain.Booking

	api := &mockDataAPI{
		createBookingFunc: func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
			persisted = b
			return echoCreate(12042)(ctx, b)
		},
	}
	f := newFixture(api)

	req := sessionRequest()
	req.Amount = 1.00

	resp, err := f.svc.CreateSessionBooking(context.Background(), req)
	require.NoError(t, err)

	// The client-supplied amount never reaches persistence
	assert.Equal(t, 2711.64, persisted.Amount)
	assert.Equal(t, 2711.64, resp.Amount)
}

func TestCreateSessionBooking_WithVoucher(t *testing.T) {
	var persisted *domain.Booking
	var voucherPatch map[string]any

	api := &mockDataAPI{
		createBookingFunc: func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
			persisted = b
			return echoCreate(7)(ctx, b)
		},
		findVoucherByCodeFunc: func(ctx context.Context, code string) (*domain.Voucher, error) {
			return &domain.Voucher{
				ID:            3,
				Code:          "SAVE10",
				DiscountType:  domain.DiscountTypePercentage,
				DiscountValue: 10,
				UsedCount:     4,
				IsActive:      true,
			}, nil
		},
		updateVoucherFunc: func(ctx context.Context, id int64, patch map[string]any) error {
			voucherPatch = patch
			return nil
		},
	}
	f := newFixture(api)

	req := sessionRequest()
	req.VoucherCode = "save10"

	resp, err := f.svc.CreateSessionBooking(context.Background(), req)
	require.NoError(t, err)

	// Discount off the pre-tax subtotal: 10% of 2298
	assert.Equal(t, 229.8, resp.DiscountAmount)
	assert.Equal(t, 2481.84, resp.Amount)
	assert.Equal(t, 2481.84, persisted.Amount)
	assert.Equal(t, "SAVE10", persisted.VoucherCode)
	assert.Equal(t, int64(3), persisted.VoucherID)

	assert.Equal(t, 1, f.usage.reserved)
	assert.Equal(t, 0, f.usage.released)
	assert.Equal(t, 5, voucherPatch["used_count"])
}

func TestCreateSessionBooking_VoucherMirrorUsesFreshCount(t *testing.T) {
	var voucherPatch map[string]any
	lookups := 0

	api := &mockDataAPI{
		createBookingFunc: echoCreate(7),
		findVoucherByCodeFunc: func(ctx context.Context, code string) (*domain.Voucher, error) {
			lookups++
			vc := &domain.Voucher{
				ID:            3,
				Code:          "SAVE10",
				DiscountType:  domain.DiscountTypePercentage,
				DiscountValue: 10,
				UsedCount:     4,
				IsActive:      true,
			}
			// Other redemptions land between validation and mirroring
			if lookups > 1 {
				vc.UsedCount = 9
			}
			return vc, nil
		},
		updateVoucherFunc: func(ctx context.Context, id int64, patch map[string]any) error {
			voucherPatch = patch
			return nil
		},
	}
	f := newFixture(api)

	req := sessionRequest()
	req.VoucherCode = "SAVE10"

	_, err := f.svc.CreateSessionBooking(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, lookups)
	assert.Equal(t, 10, voucherPatch["used_count"])
}

func TestCreateSessionBooking_VoucherExhaustedAtReserve(t *testing.T) {
	api := &mockDataAPI{
		createBookingFunc: func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
			t.Fatal("booking must not be persisted when the voucher cannot be reserved")
			return nil, nil
		},
		findVoucherByCodeFunc: func(ctx context.Context, code string) (*domain.Voucher, error) {
			return &domain.Voucher{ID: 3, Code: "SAVE10", DiscountType: domain.DiscountTypeFixed, DiscountValue: 100, IsActive: true}, nil
		},
	}
	f := newFixture(api)
	f.usage.reserveFunc = func(ctx context.Context, v *domain.Voucher) error {
		return domain.ErrVoucherExhausted
	}

	req := sessionRequest()
	req.VoucherCode = "SAVE10"

	_, err := f.svc.CreateSessionBooking(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrVoucherExhausted)
}

func TestCreateSessionBooking_PersistFailureReleasesVoucher(t *testing.T) {
	api := &mockDataAPI{
		createBookingFunc: func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
			return nil, errors.New("upstream down")
		},
		findVoucherByCodeFunc: func(ctx context.Context, code string) (*domain.Voucher, error) {
			return &domain.Voucher{ID: 3, Code: "SAVE10", DiscountType: domain.DiscountTypeFixed, DiscountValue: 100, IsActive: true}, nil
		},
	}
	f := newFixture(api)

	req := sessionRequest()
	req.VoucherCode = "SAVE10"

	_, err := f.svc.CreateSessionBooking(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 1, f.usage.reserved)
	assert.Equal(t, 1, f.usage.released)
}

func TestCreateSessionBooking_DuplicateWindow(t *testing.T) {
	t.Run("recent duplicate rejected", func(t *testing.T) {
		api := &mockDataAPI{
			createBookingFunc: func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
				t.Fatal("duplicate must be rejected before persist")
				return nil, nil
			},
			findBookingsFunc: func(ctx context.Context, email, date, slotTime string) ([]domain.Booking, error) {
				assert.Equal(t, "priya@example.com", email)
				return []domain.Booking{{CreatedAt: testNow.Add(-2 * time.Minute)}}, nil
			},
		}
		f := newFixture(api)

		_, err := f.svc.CreateSessionBooking(context.Background(), sessionRequest())
		assert.ErrorIs(t, err, domain.ErrDuplicateSubmission)
	})

	t.Run("old booking does not block", func(t *testing.T) {
		api := &mockDataAPI{
			createBookingFunc: echoCreate(1),
			findBookingsFunc: func(ctx context.Context, email, date, slotTime string) ([]domain.Booking, error) {
				return []domain.Booking{{CreatedAt: testNow.Add(-6 * time.Minute)}}, nil
			},
		}
		f := newFixture(api)

		_, err := f.svc.CreateSessionBooking(context.Background(), sessionRequest())
		assert.NoError(t, err)
	})

	t.Run("lookup failure does not block", func(t *testing.T) {
		api := &mockDataAPI{
			createBookingFunc: echoCreate(1),
			findBookingsFunc: func(ctx context.Context, email, date, slotTime string) ([]domain.Booking, error) {
				return nil, errors.New("timeout")
			},
		}
		f := newFixture(api)

		_, err := f.svc.CreateSessionBooking(context.Background(), sessionRequest())
		assert.NoError(t, err)
	})
}

func TestCreateSessionBooking_Validation(t *testing.T) {
	newReq := func(mutate func(*dto.CreateBookingRequest)) *dto.CreateBookingRequest {
		req := sessionRequest()
		mutate(req)
		return req
	}

	tests := []struct {
		name  string
		req   *dto.CreateBookingRequest
		field string
	}{
		{"missing name", newReq(func(r *dto.CreateBookingRequest) { r.Name = "  <> " }), "name"},
		{"bad phone", newReq(func(r *dto.CreateBookingRequest) { r.Phone = "12345" }), "phone"},
		{"phone not starting 6-9", newReq(func(r *dto.CreateBookingRequest) { r.Phone = "5876543210" }), "phone"},
		{"bad date", newReq(func(r *dto.CreateBookingRequest) { r.Date = "01-09-2026" }), "date"},
		{"bad time", newReq(func(r *dto.CreateBookingRequest) { r.Time = "25:99" }), "time"},
		{"past slot", newReq(func(r *dto.CreateBookingRequest) { r.Date = "2026-08-29"; r.Time = "09:00" }), "date"},
		{"no players", newReq(func(r *dto.CreateBookingRequest) { r.Adults = 0; r.Kids = 0; r.Spectators = 2 }), "guests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockDataAPI{
				createBookingFunc: func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
					t.Fatal("invalid input must be rejected before any call")
					return nil, nil
				},
				findBookingsFunc: func(ctx context.Context, email, date, slotTime string) ([]domain.Booking, error) {
					t.Fatal("invalid input must be rejected before any call")
					return nil, nil
				},
			}
			f := newFixture(api)

			_, err := f.svc.CreateSessionBooking(context.Background(), tt.req)
			require.Error(t, err)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreateSessionBooking_WaiverFailureKeepsBooking(t *testing.T) {
	api := &mockDataAPI{
		createBookingFunc: echoCreate(9),
		createWaiverFunc: func(ctx context.Context, w *domain.Waiver) (*domain.Waiver, error) {
			return nil, errors.New("waiver store down")
		},
	}
	f := newFixture(api)

	resp, err := f.svc.CreateSessionBooking(context.Background(), sessionRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.QRCode)
	assert.Equal(t, []string{"uuid-42"}, f.events.created)
}

func TestCreatePartyBooking(t *testing.T) {
	var persisted *domain.Booking

	api := &mockDataAPI{
		createBookingFunc: func(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
			persisted = b
			return echoCreate(55)(ctx, b)
		},
		createWaiverFunc: func(ctx context.Context, w *domain.Waiver) (*domain.Waiver, error) {
			t.Fatal("no waiver input, none should be created")
			return nil, nil
		},
	}
	f := newFixture(api)

	resp, err := f.svc.CreatePartyBooking(context.Background(), &dto.CreatePartyBookingRequest{
		Name:         "Rahul Verma",
		Email:        "rahul@example.com",
		Phone:        "9123456780",
		Date:         "2026-09-05",
		Time:         "16:00",
		Participants: 8,
		Spectators:   13,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BookingTypeParty, persisted.Type)
	assert.Equal(t, domain.BookingStatusPending, persisted.Status)
	assert.Equal(t, 8, persisted.Kids)
	assert.Equal(t, 120, persisted.DurationMin)

	// 8*1500 + 3*100 extra spectators = 12300, +18% GST
	assert.Equal(t, 12300.0, resp.Subtotal)
	assert.Equal(t, 14514.0, resp.Amount)
	assert.Equal(t, 7257.0, resp.DepositAmount)
}

func TestValidateVoucher(t *testing.T) {
	t.Run("valid code", func(t *testing.T) {
		api := &mockDataAPI{
			findVoucherByCodeFunc: func(ctx context.Context, code string) (*domain.Voucher, error) {
				return &domain.Voucher{
					Code:          "SAVE10",
					DiscountType:  domain.DiscountTypePercentage,
					DiscountValue: 10,
					IsActive:      true,
				}, nil
			},
		}
		f := newFixture(api)

		resp, err := f.svc.ValidateVoucher(context.Background(), &dto.ValidateVoucherRequest{
			Code:        "SAVE10",
			OrderAmount: 2298,
		})
		require.NoError(t, err)

		assert.True(t, resp.Valid)
		assert.Equal(t, 229.8, resp.DiscountAmount)
		// Pre-checkout validation never consumes a usage slot
		assert.Equal(t, 0, f.usage.reserved)
	})

	t.Run("rejection surfaces as message", func(t *testing.T) {
		api := &mockDataAPI{
			findVoucherByCodeFunc: func(ctx context.Context, code string) (*domain.Voucher, error) {
				return nil, domain.ErrVoucherNotFound
			},
		}
		f := newFixture(api)

		resp, err := f.svc.ValidateVoucher(context.Background(), &dto.ValidateVoucherRequest{
			Code:        "NOPE",
			OrderAmount: 1000,
		})
		require.NoError(t, err)

		assert.False(t, resp.Valid)
		assert.Equal(t, "invalid voucher code", resp.Message)
	})

	t.Run("upstream error propagates", func(t *testing.T) {
		api := &mockDataAPI{
			findVoucherByCodeFunc: func(ctx context.Context, code string) (*domain.Voucher, error) {
				return nil, errors.New("timeout")
			},
		}
		f := newFixture(api)

		_, err := f.svc.ValidateVoucher(context.Background(), &dto.ValidateVoucherRequest{
			Code:        "SAVE10",
			OrderAmount: 1000,
		})
		assert.Error(t, err)
	})
}

func TestGetTicket(t *testing.T) {
	booked := &domain.Booking{
		ID:        12042,
		UUID:      "uuid-42",
		Name:      "Priya Sharma",
		Date:      "2026-09-01",
		Time:      "14:00:00",
		Adults:    2,
		Kids:      1,
		Status:    domain.BookingStatusConfirmed,
		CreatedAt: testNow,
	}

	t.Run("stored qr returned", func(t *testing.T) {
		b := *booked
		b.QRCode = "data:image/png;base64,stored"
		api := &mockDataAPI{
			getBookingByUUIDFunc: func(ctx context.Context, uuid string) (*domain.Booking, error) {
				return &b, nil
			},
		}
		f := newFixture(api)

		resp, err := f.svc.GetTicket(context.Background(), "uuid-42")
		require.NoError(t, err)

		assert.Equal(t, "NIP-20260829-2042", resp.BookingNumber)
		assert.Equal(t, 3, resp.Guests)
		assert.Equal(t, "data:image/png;base64,stored", resp.QRCode)
	})

	t.Run("missing qr re-rendered", func(t *testing.T) {
		b := *booked
		api := &mockDataAPI{
			getBookingByUUIDFunc: func(ctx context.Context, uuid string) (*domain.Booking, error) {
				return &b, nil
			},
		}
		f := newFixture(api)

		resp, err := f.svc.GetTicket(context.Background(), "uuid-42")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(resp.QRCode, "data:image/png;base64,"))
	})

	t.Run("unknown uuid", func(t *testing.T) {
		api := &mockDataAPI{
			getBookingByUUIDFunc: func(ctx context.Context, uuid string) (*domain.Booking, error) {
				return nil, domain.ErrBookingNotFound
			},
		}
		f := newFixture(api)

		_, err := f.svc.GetTicket(context.Background(), "nope")
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})
}
