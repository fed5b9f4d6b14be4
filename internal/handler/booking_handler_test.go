package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nipark/booking/internal/domain"
	"github.com/nipark/booking/internal/dto"
	"github.com/nipark/booking/pkg/logger"
	"github.com/nipark/booking/pkg/response"
)

type mockBookingService struct {
	createSessionFunc   func(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error)
	createPartyFunc     func(ctx context.Context, req *dto.CreatePartyBookingRequest) (*dto.PartyBookingCreatedResponse, error)
	validateVoucherFunc func(ctx context.Context, req *dto.ValidateVoucherRequest) (*dto.ValidateVoucherResponse, error)
	getTicketFunc       func(ctx context.Context, uuid string) (*dto.TicketResponse, error)
}

func (m *mockBookingService) CreateSessionBooking(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error) {
	return m.createSessionFunc(ctx, req)
}

func (m *mockBookingService) CreatePartyBooking(ctx context.Context, req *dto.CreatePartyBookingRequest) (*dto.PartyBookingCreatedResponse, error) {
	return m.createPartyFunc(ctx, req)
}

func (m *mockBookingService) ValidateVoucher(ctx context.Context, req *dto.ValidateVoucherRequest) (*dto.ValidateVoucherResponse, error) {
	return m.validateVoucherFunc(ctx, req)
}

func (m *mockBookingService) GetTicket(ctx context.Context, uuid string) (*dto.TicketResponse, error) {
	return m.getTicketFunc(ctx, uuid)
}

func setupRouter(svc *mockBookingService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewBookingHandler(svc, logger.Get())
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func validSessionBody() map[string]any {
	return map[string]any{
		"name":     "Priya Sharma",
		"email":    "priya@example.com",
		"phone":    "9876543210",
		"date":     "2026-09-01",
		"time":     "14:00",
		"duration": 60,
		"adults":   2,
		"kids":     1,
	}
}

func TestCreateBooking(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := &mockBookingService{
			createSessionFunc: func(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error) {
				assert.Equal(t, "priya@example.com", req.Email)
				return &dto.BookingCreatedResponse{
					BookingID:     "uuid-42",
					BookingNumber: "NIP-20260901-2042",
					Amount:        2711.64,
				}, nil
			},
		}

		w := doJSON(t, setupRouter(svc), http.MethodPost, "/api/v1/bookings", validSessionBody())

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w)
		assert.True(t, env.Success)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := &mockBookingService{
			createSessionFunc: func(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error) {
				t.Fatal("service must not be called")
				return nil, nil
			},
		}

		body := validSessionBody()
		delete(body, "email")
		w := doJSON(t, setupRouter(svc), http.MethodPost, "/api/v1/bookings", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation error maps to 400 with field", func(t *testing.T) {
		svc := &mockBookingService{
			createSessionFunc: func(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error) {
				return nil, domain.NewValidationError("phone", "please enter a valid 10-digit mobile number")
			},
		}

		w := doJSON(t, setupRouter(svc), http.MethodPost, "/api/v1/bookings", validSessionBody())

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Equal(t, "phone", env.Error.Details)
	})

	t.Run("duplicate maps to 409", func(t *testing.T) {
		svc := &mockBookingService{
			createSessionFunc: func(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error) {
				return nil, domain.ErrDuplicateSubmission
			},
		}

		w := doJSON(t, setupRouter(svc), http.MethodPost, "/api/v1/bookings", validSessionBody())

		assert.Equal(t, http.StatusConflict, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "DUPLICATE_BOOKING", env.Error.Code)
	})

	t.Run("voucher rejection maps to 422", func(t *testing.T) {
		svc := &mockBookingService{
			createSessionFunc: func(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error) {
				return nil, domain.ErrVoucherExpired
			},
		}

		w := doJSON(t, setupRouter(svc), http.MethodPost, "/api/v1/bookings", validSessionBody())

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decodeEnvelope(t, w)
		assert.Equal(t, "VOUCHER_REJECTED", env.Error.Code)
		assert.Equal(t, "this voucher has expired", env.Error.Message)
	})

	t.Run("unexpected error is opaque 500", func(t *testing.T) {
		svc := &mockBookingService{
			createSessionFunc: func(ctx context.Context, req *dto.CreateBookingRequest) (*dto.BookingCreatedResponse, error) {
				return nil, errors.New("pg: connection refused at 10.0.3.7")
			},
		}

		w := doJSON(t, setupRouter(svc), http.MethodPost, "/api/v1/bookings", validSessionBody())

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "10.0.3.7")
	})
}

func TestCreatePartyBooking(t *testing.T) {
	svc := &mockBookingService{
		createPartyFunc: func(ctx context.Context, req *dto.CreatePartyBookingRequest) (*dto.PartyBookingCreatedResponse, error) {
			assert.Equal(t, 8, req.Participants)
			return &dto.PartyBookingCreatedResponse{
				BookingCreatedResponse: dto.BookingCreatedResponse{
					BookingID: "uuid-55",
					Amount:    14514,
				},
				DepositAmount: 7257,
			}, nil
		},
	}

	w := doJSON(t, setupRouter(svc), http.MethodPost, "/api/v1/party-bookings", map[string]any{
		"name":         "Rahul Verma",
		"email":        "rahul@example.com",
		"phone":        "9123456780",
		"date":         "2026-09-05",
		"time":         "16:00",
		"participants": 8,
		"spectators":   13,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"deposit_amount":7257`)
}

func TestValidateVoucherEndpoint(t *testing.T) {
	svc := &mockBookingService{
		validateVoucherFunc: func(ctx context.Context, req *dto.ValidateVoucherRequest) (*dto.ValidateVoucherResponse, error) {
			return &dto.ValidateVoucherResponse{Valid: false, Message: "this voucher has expired"}, nil
		},
	}

	w := doJSON(t, setupRouter(svc), http.MethodPost, "/api/v1/vouchers/validate", map[string]any{
		"code":         "OLD",
		"order_amount": 1000,
	})

	// Rejections are a successful validation outcome, not an error
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)
}

func TestGetTicketEndpoint(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &mockBookingService{
			getTicketFunc: func(ctx context.Context, uuid string) (*dto.TicketResponse, error) {
				assert.Equal(t, "uuid-42", uuid)
				return &dto.TicketResponse{BookingNumber: "NIP-20260901-2042", Guests: 3}, nil
			},
		}

		w := doJSON(t, setupRouter(svc), http.MethodGet, "/api/v1/tickets/uuid-42", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		svc := &mockBookingService{
			getTicketFunc: func(ctx context.Context, uuid string) (*dto.TicketResponse, error) {
				return nil, domain.ErrBookingNotFound
			},
		}

		w := doJSON(t, setupRouter(svc), http.MethodGet, "/api/v1/tickets/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
