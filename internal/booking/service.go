package booking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"sparkleclean/internal/events"
	"sparkleclean/internal/models"
	"sparkleclean/internal/store"

	"github.com/rs/zerolog"
)

var (
	// ErrValidation wraps all domain-validation failures on booking input.
	ErrValidation = errors.New("invalid booking input")

	// ErrInvalidTransition signals a status change that would revert a
	// settled booking.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNumberExhausted is returned when booking-number generation cannot
	// find a free code within the attempt budget.
	ErrNumberExhausted = errors.New("could not generate a unique booking number")
)

// Notifier enqueues owner notifications for new bookings. Failures are soft:
// the booking is already persisted when the notifier runs.
type Notifier interface {
	EnqueueBookingNotification(ctx context.Context, booking *models.Booking) error
}

// Service orchestrates store calls for booking creation, status transitions,
// lookup and deletion.
type Service struct {
	store    store.Store
	eventBus *events.EventBus
	notifier Notifier
	catalog  map[string]models.Service
	logger   *zerolog.Logger
}

func NewService(st store.Store, bus *events.EventBus, notifier Notifier, catalog []models.Service, logger *zerolog.Logger) *Service {
	byID := make(map[string]models.Service, len(catalog))
	for _, svc := range catalog {
		byID[svc.ID] = svc
	}
	return &Service{
		store:    st,
		eventBus: bus,
		notifier: notifier,
		catalog:  byID,
		logger:   logger,
	}
}

const numberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateNumber produces the human-facing code: fixed prefix plus
// BookingNumberLength random base-36 characters, upper-cased.
func generateNumber() (string, error) {
	var sb strings.Builder
	sb.WriteString(models.BookingNumberPrefix)
	for i := 0; i < models.BookingNumberLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(numberAlphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(numberAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func (s *Service) validate(input models.BookingInput) error {
	required := []struct {
		name  string
		value string
	}{
		{"name", input.Name},
		{"email", input.Email},
		{"phone", input.Phone},
		{"address", input.Address},
		{"service", input.Service},
		{"date", input.Date},
		{"time", input.Time},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, field.name)
		}
	}

	if _, err := time.Parse("2006-01-02", input.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	if _, err := time.Parse("15:04", input.Time); err != nil {
		return fmt.Errorf("%w: time must be HH:MM", ErrValidation)
	}

	if len(s.catalog) > 0 {
		if _, ok := s.catalog[input.Service]; !ok {
			return fmt.Errorf("%w: unknown service %q", ErrValidation, input.Service)
		}
	}

	return nil
}

// Create validates the submitted booking detail, assigns a unique booking
// number and persists the record with pending status. The booking is persisted
// first; event publication and notification are best-effort afterthoughts that
// never fail the creation.
func (s *Service) Create(ctx context.Context, input models.BookingInput) (*models.Booking, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	existing, err := s.store.ListBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings for number check: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, b := range existing {
		taken[strings.ToUpper(b.BookingNumber)] = true
	}

	var number string
	for attempt := 0; attempt < models.BookingNumberMaxAttempts; attempt++ {
		candidate, err := generateNumber()
		if err != nil {
			return nil, err
		}
		if !taken[candidate] {
			number = candidate
			break
		}
	}
	if number == "" {
		return nil, ErrNumberExhausted
	}

	booking := &models.Booking{
		BookingNumber: number,
		Name:          strings.TrimSpace(input.Name),
		Email:         strings.TrimSpace(input.Email),
		Phone:         strings.TrimSpace(input.Phone),
		Address:       strings.TrimSpace(input.Address),
		Service:       input.Service,
		Date:          input.Date,
		Time:          input.Time,
		Notes:         strings.TrimSpace(input.Notes),
		Status:        models.StatusPending,
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("persist booking: %w", err)
	}

	s.publishEvent(events.EventBookingCreated, booking, "customer")

	if s.notifier != nil {
		if err := s.notifier.EnqueueBookingNotification(ctx, booking); err != nil {
			// Soft failure: the booking is persisted and stays valid.
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("notification enqueue failed")
		}
	}

	return booking, nil
}

// FindByBookingNumber matches the code case-insensitively over the full
// listing; the backends have no indexed lookup for it.
func (s *Service) FindByBookingNumber(ctx context.Context, code string) (*models.Booking, error) {
	if strings.TrimSpace(code) == "" {
		return nil, store.ErrNotFound
	}

	bookings, err := s.store.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		if bookings[i].MatchesNumber(code) {
			return &bookings[i], nil
		}
	}
	return nil, store.ErrNotFound
}

// Confirm moves a pending booking to confirmed. Confirming an already
// confirmed booking is idempotent; confirming a rejected one is an error.
func (s *Service) Confirm(ctx context.Context, id int64) (*models.Booking, error) {
	return s.transition(ctx, id, models.StatusConfirmed, events.EventBookingConfirmed)
}

// Reject moves a pending booking to rejected, with the same idempotency rules
// as Confirm.
func (s *Service) Reject(ctx context.Context, id int64) (*models.Booking, error) {
	return s.transition(ctx, id, models.StatusRejected, events.EventBookingRejected)
}

func (s *Service) transition(ctx context.Context, id int64, target, eventType string) (*models.Booking, error) {
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status == target {
		// No state change, no error.
		return current, nil
	}
	if current.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
	}

	updated, err := s.store.UpdateBookingStatus(ctx, id, target)
	if err != nil {
		return nil, err
	}

	s.publishEvent(eventType, updated, "admin")
	return updated, nil
}

// Delete removes the booking outright; any status may be deleted.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	deleted, err := s.store.DeleteBooking(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.publishEvent(events.EventBookingDeleted, booking, "admin")
	}
	return deleted, nil
}

func (s *Service) List(ctx context.Context) ([]models.Booking, error) {
	return s.store.ListBookings(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// ServiceTitle resolves a catalog id to its display title, falling back to
// the raw id for unknown entries.
func (s *Service) ServiceTitle(id string) string {
	if svc, ok := s.catalog[id]; ok {
		return svc.Title
	}
	return id
}

func (s *Service) publishEvent(eventType string, booking *models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		Name:          booking.Name,
		Service:       booking.Service,
		Date:          booking.Date,
		Time:          booking.Time,
		Status:        booking.Status,
		ChangedBy:     changedBy,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
