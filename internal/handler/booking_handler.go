// Package handler exposes the booking flow over HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nipark/booking/internal/domain"
	"github.com/nipark/booking/internal/dto"
	"github.com/nipark/booking/internal/service"
	"github.com/nipark/booking/pkg/logger"
	"github.com/nipark/booking/pkg/response"
	"github.com/nipark/booking/pkg/telemetry"
)

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	svc service.BookingService
	log *logger.Logger
}

// NewBookingHandler creates a booking handler
func NewBookingHandler(svc service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, log: log}
}

// RegisterRoutes mounts the booking routes on the given group
func (h *BookingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings", h.CreateBooking)
	rg.POST("/party-bookings", h.CreatePartyBooking)
	rg.POST("/vouchers/validate", h.ValidateVoucher)
	rg.GET("/tickets/:uuid", h.GetTicket)
}

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.create_booking")
	defer span.End()

	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.svc.CreateSessionBooking(ctx, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Created(c, resp)
}

// CreatePartyBooking handles POST /api/v1/party-bookings
func (h *BookingHandler) CreatePartyBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.create_party_booking")
	defer span.End()

	var req dto.CreatePartyBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.svc.CreatePartyBooking(ctx, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Created(c, resp)
}

// ValidateVoucher handles POST /api/v1/vouchers/validate
func (h *BookingHandler) ValidateVoucher(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.validate_voucher")
	defer span.End()

	var req dto.ValidateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.svc.ValidateVoucher(ctx, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, resp)
}

// GetTicket handles GET /api/v1/tickets/:uuid
func (h *BookingHandler) GetTicket(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.get_ticket")
	defer span.End()

	uuid := c.Param("uuid")
	if uuid == "" {
		response.BadRequest(c, "ticket id is required")
		return
	}

	resp, err := h.svc.GetTicket(ctx, uuid)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Success(c, resp)
}

// handleError maps domain errors onto the JSON error envelope. Only
// validation and business rejections echo their message; anything else
// is an opaque 500 so upstream detail never leaks to customers.
func (h *BookingHandler) handleError(c *gin.Context, err error) {
	telemetry.SetSpanError(c.Request.Context(), err)

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", ve.Message, ve.Field)
	case errors.Is(err, domain.ErrDuplicateSubmission):
		response.Conflict(c, "DUPLICATE_BOOKING", err.Error())
	case domain.IsVoucherRejection(err):
		response.Error(c, http.StatusUnprocessableEntity, "VOUCHER_REJECTED", err.Error(), "")
	case errors.Is(err, domain.ErrBookingNotFound):
		response.NotFound(c, err.Error())
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR",
			"something went wrong, please try again", "")
	}
}
