// Package dataapi is the HTTP client for the upstream data API, which
// owns all persistence. Reads are retried with backoff; writes are
// attempted exactly once so a slow response can never double-create.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/nipark/booking/internal/domain"
	"github.com/nipark/booking/pkg/config"
	"github.com/nipark/booking/pkg/logger"
	"github.com/nipark/booking/pkg/retry"
	"github.com/nipark/booking/pkg/telemetry"
)

// UpstreamError is a non-2xx response from the data API
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("data api returned %d: %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is an upstream 404
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound
}

// Client talks to the data API over JSON/HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   *retry.Config
	log        *logger.Logger
}

// NewClient creates a data API client from config
func NewClient(cfg config.DataAPIConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCfg: &retry.Config{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
		log: log,
	}
}

// CreateBooking persists a new booking and returns it with its
// server-assigned id and uuid
func (c *Client) CreateBooking(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	var created domain.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", b, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// FindBookings lists bookings matching the given email, date and slot
// time, newest first
func (c *Client) FindBookings(ctx context.Context, email, date, slotTime string) ([]domain.Booking, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("date", date)
	q.Set("time", slotTime)

	var out []domain.Booking
	if err := c.get(ctx, "/bookings?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBookingByUUID fetches a single booking by its external uuid.
// Returns domain.ErrBookingNotFound when no booking matches.
func (c *Client) GetBookingByUUID(ctx context.Context, uuid string) (*domain.Booking, error) {
	q := url.Values{}
	q.Set("uuid", uuid)

	var out []domain.Booking
	if err := c.get(ctx, "/bookings?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrBookingNotFound
	}
	return &out[0], nil
}

// UpdateBooking applies a partial update to a booking
func (c *Client) UpdateBooking(ctx context.Context, id int64, patch map[string]any) (*domain.Booking, error) {
	var updated domain.Booking
	path := fmt.Sprintf("/bookings/%d", id)
	if err := c.do(ctx, http.MethodPatch, path, patch, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// FindVoucherByCode looks up a voucher by its code. Returns
// domain.ErrVoucherNotFound when the code does not exist.
func (c *Client) FindVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	q := url.Values{}
	q.Set("code", code)

	var out []domain.Voucher
	if err := c.get(ctx, "/vouchers?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrVoucherNotFound
	}
	return &out[0], nil
}

// UpdateVoucher applies a partial update to a voucher
func (c *Client) UpdateVoucher(ctx context.Context, id int64, patch map[string]any) error {
	path := fmt.Sprintf("/vouchers/%d", id)
	return c.do(ctx, http.MethodPatch, path, patch, nil)
}

// CreateWaiver persists a new waiver
func (c *Client) CreateWaiver(ctx context.Context, w *domain.Waiver) (*domain.Waiver, error) {
	var created domain.Waiver
	if err := c.do(ctx, http.MethodPost, "/waivers", w, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// get performs a GET with retries. 4xx responses are permanent; 5xx
// and transport errors are retried per the configured backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	result := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return nil
		}

		var ue *UpstreamError
		if errors.As(err, &ue) && ue.StatusCode < 500 {
			return retry.Permanent(err)
		}
		return err
	})

	if result.Err != nil {
		if result.Attempts > 1 {
			c.log.Warn("data api read failed after retries",
				zap.String("path", path),
				zap.Int("attempts", result.Attempts),
				zap.Error(result.LastError))
		}
		if result.LastError != nil {
			return result.LastError
		}
		return result.Err
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	headers := map[string]string{}
	telemetry.InjectHeaders(ctx, headers)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("data api request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(respBody),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response body: %w", err)
		}
	}
	return nil
}

// errorDetail pulls the "detail" field out of an error response body,
// falling back to the raw body
func errorDetail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
