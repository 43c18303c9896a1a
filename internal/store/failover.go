package store

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"sparkleclean/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStore serves from a primary (typically remote) store and falls back
// to a local store when the primary is unreachable. After a failure the
// primary is probed again at most once a minute on the read path.
//
// This replaces the old behavior of overwriting remote state with defaults on
// any failed read: a transient outage now degrades to the fallback instead.
type FailoverStore struct {
	primary   Store
	fallback  Store
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix seconds of the last failed probe
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *FailoverStore) markDown(err error) {
	s.logger.Error().Err(err).Msg("primary store failed, falling back to local store")
	s.isDown.Store(true)
	s.lastCheck.Store(time.Now().Unix())
}

func (s *FailoverStore) shouldProbe() bool {
	return time.Since(time.Unix(s.lastCheck.Load(), 0)) > time.Minute
}

func (s *FailoverStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	if !s.isDown.Load() {
		bookings, err := s.primary.ListBookings(ctx)
		if err == nil {
			return bookings, nil
		}
		s.markDown(err)
	} else if s.shouldProbe() {
		bookings, err := s.primary.ListBookings(ctx)
		if err == nil {
			s.isDown.Store(false)
			s.logger.Info().Msg("primary store recovered")
			return bookings, nil
		}
		s.lastCheck.Store(time.Now().Unix())
	}

	return s.fallback.ListBookings(ctx)
}

func (s *FailoverStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	if !s.isDown.Load() {
		booking, err := s.primary.GetBooking(ctx, id)
		if err == nil || errors.Is(err, ErrNotFound) {
			return booking, err
		}
		s.markDown(err)
	}

	return s.fallback.GetBooking(ctx, id)
}

func (s *FailoverStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if !s.isDown.Load() {
		err := s.primary.CreateBooking(ctx, booking)
		if err == nil {
			return nil
		}
		s.markDown(err)
	}

	return s.fallback.CreateBooking(ctx, booking)
}

func (s *FailoverStore) UpdateBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error) {
	if !s.isDown.Load() {
		booking, err := s.primary.UpdateBookingStatus(ctx, id, status)
		if err == nil || errors.Is(err, ErrNotFound) {
			return booking, err
		}
		s.markDown(err)
	}

	return s.fallback.UpdateBookingStatus(ctx, id, status)
}

func (s *FailoverStore) DeleteBooking(ctx context.Context, id int64) (bool, error) {
	if !s.isDown.Load() {
		deleted, err := s.primary.DeleteBooking(ctx, id)
		if err == nil {
			return deleted, nil
		}
		s.markDown(err)
	}

	return s.fallback.DeleteBooking(ctx, id)
}

func (s *FailoverStore) GetPasswords(ctx context.Context) ([]string, error) {
	if !s.isDown.Load() {
		passwords, err := s.primary.GetPasswords(ctx)
		if err == nil {
			return passwords, nil
		}
		s.markDown(err)
	}

	return s.fallback.GetPasswords(ctx)
}

func (s *FailoverStore) AddPassword(ctx context.Context, password string) (bool, error) {
	if !s.isDown.Load() {
		added, err := s.primary.AddPassword(ctx, password)
		if err == nil {
			return added, nil
		}
		s.markDown(err)
	}

	return s.fallback.AddPassword(ctx, password)
}

func (s *FailoverStore) DeletePassword(ctx context.Context, password string) (bool, error) {
	if !s.isDown.Load() {
		deleted, err := s.primary.DeletePassword(ctx, password)
		if err == nil {
			return deleted, nil
		}
		s.markDown(err)
	}

	return s.fallback.DeletePassword(ctx, password)
}

func (s *FailoverStore) Close() error {
	if err := s.primary.Close(); err != nil {
		return err
	}
	return s.fallback.Close()
}
