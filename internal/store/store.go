package store

import (
	"context"
	"errors"

	"sparkleclean/internal/models"
)

var (
	// ErrNotFound signals that no record with the given id exists.
	ErrNotFound = errors.New("record not found")

	// ErrStoreUnavailable signals a transport or storage failure. Reads must
	// not fall back to default data when they see it; the document may be
	// perfectly valid on the other side of a dead connection.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store is the booking record store contract. All three backends (sqlite,
// blob, rest) implement it; the server is wired against the interface and the
// backend is chosen at configuration time.
type Store interface {
	ListBookings(ctx context.Context) ([]models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)

	// CreateBooking persists the booking and assigns its id in place.
	// Booking number and status are set by the caller.
	CreateBooking(ctx context.Context, booking *models.Booking) error

	// UpdateBookingStatus returns the updated record, or ErrNotFound.
	UpdateBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error)

	// DeleteBooking reports whether a deletion occurred.
	DeleteBooking(ctx context.Context, id int64) (bool, error)

	GetPasswords(ctx context.Context) ([]string, error)

	// AddPassword returns false for empty or duplicate candidates.
	AddPassword(ctx context.Context, password string) (bool, error)

	// DeletePassword returns false when the password is absent or is the
	// last remaining entry: the set must never become empty.
	DeletePassword(ctx context.Context, password string) (bool, error)

	Close() error
}

// Document is the whole-document shape used by the blob backend, matching the
// remote JSON store layout.
type Document struct {
	Bookings       []models.Booking `json:"bookings"`
	AdminPasswords []string         `json:"adminPasswords"`
}

// InitialDocument returns the seed used when the remote document is genuinely
// absent or malformed.
func InitialDocument() Document {
	return Document{
		Bookings:       []models.Booking{},
		AdminPasswords: models.DefaultAdminPasswords(),
	}
}
