package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sparkleclean/internal/models"

	"github.com/rs/zerolog"
)

// RESTStore talks to a remote booking collection API: one resource per
// booking, server-assigned ids, partial status patches. Password rules
// (empty, duplicate, last-entry) are enforced client-side because the
// collection endpoint is a plain datastore.
type RESTStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zerolog.Logger
}

func NewRESTStore(baseURL, apiKey string, timeout time.Duration, logger *zerolog.Logger) *RESTStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (s *RESTStore) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("booking endpoint unreachable")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		s.logger.Warn().Int("status", resp.StatusCode).Str("method", method).Str("path", path).Msg("booking endpoint error")
		return nil, fmt.Errorf("%w: booking endpoint returned status %d", ErrStoreUnavailable, resp.StatusCode)
	}
	return resp, nil
}

func decodeInto(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func (s *RESTStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	resp, err := s.do(ctx, http.MethodGet, "/bookings", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("list bookings: unexpected status %d", resp.StatusCode)
	}

	var bookings []models.Booking
	if err := decodeInto(resp, &bookings); err != nil {
		return nil, fmt.Errorf("list bookings: decode response: %w", err)
	}
	return bookings, nil
}

func (s *RESTStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	resp, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/bookings/%d", id), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("get booking: unexpected status %d", resp.StatusCode)
	}

	var booking models.Booking
	if err := decodeInto(resp, &booking); err != nil {
		return nil, fmt.Errorf("get booking: decode response: %w", err)
	}
	return &booking, nil
}

func (s *RESTStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	resp, err := s.do(ctx, http.MethodPost, "/bookings", booking)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("create booking: unexpected status %d", resp.StatusCode)
	}

	var created models.Booking
	if err := decodeInto(resp, &created); err != nil {
		return fmt.Errorf("create booking: decode response: %w", err)
	}
	// The collection endpoint assigns the id.
	booking.ID = created.ID
	return nil
}

func (s *RESTStore) UpdateBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error) {
	patch := map[string]string{"status": status}

	resp, err := s.do(ctx, http.MethodPatch, fmt.Sprintf("/bookings/%d", id), patch)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("update booking status: unexpected status %d", resp.StatusCode)
	}

	var updated models.Booking
	if err := decodeInto(resp, &updated); err != nil {
		return nil, fmt.Errorf("update booking status: decode response: %w", err)
	}
	return &updated, nil
}

func (s *RESTStore) DeleteBooking(ctx context.Context, id int64) (bool, error) {
	resp, err := s.do(ctx, http.MethodDelete, fmt.Sprintf("/bookings/%d", id), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("delete booking: unexpected status %d", resp.StatusCode)
	}
}

func (s *RESTStore) GetPasswords(ctx context.Context) ([]string, error) {
	resp, err := s.do(ctx, http.MethodGet, "/adminPasswords", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("get passwords: unexpected status %d", resp.StatusCode)
	}

	var passwords []string
	if err := decodeInto(resp, &passwords); err != nil {
		return nil, fmt.Errorf("get passwords: decode response: %w", err)
	}
	return passwords, nil
}

func (s *RESTStore) AddPassword(ctx context.Context, password string) (bool, error) {
	if strings.TrimSpace(password) == "" {
		return false, nil
	}

	existing, err := s.GetPasswords(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range existing {
		if p == password {
			return false, nil
		}
	}

	resp, err := s.do(ctx, http.MethodPost, "/adminPasswords", map[string]string{"password": password})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("add password: unexpected status %d", resp.StatusCode)
	}
	return true, nil
}

func (s *RESTStore) DeletePassword(ctx context.Context, password string) (bool, error) {
	existing, err := s.GetPasswords(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) <= 1 {
		return false, nil
	}

	found := false
	for _, p := range existing {
		if p == password {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}

	resp, err := s.do(ctx, http.MethodDelete, "/adminPasswords/"+url.PathEscape(password), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("delete password: unexpected status %d", resp.StatusCode)
	}
}

func (s *RESTStore) Close() error {
	return nil
}
