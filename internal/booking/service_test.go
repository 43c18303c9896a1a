package booking

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"

	"sparkleclean/internal/events"
	"sparkleclean/internal/models"
	"sparkleclean/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory store.Store for service tests.
type memStore struct {
	bookings  []models.Booking
	passwords []string
	nextID    int64
}

func (m *memStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	return append([]models.Booking(nil), m.bookings...), nil
}

func (m *memStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	for i := range m.bookings {
		if m.bookings[i].ID == id {
			b := m.bookings[i]
			return &b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	m.nextID++
	booking.ID = m.nextID
	m.bookings = append(m.bookings, *booking)
	return nil
}

func (m *memStore) UpdateBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error) {
	for i := range m.bookings {
		if m.bookings[i].ID == id {
			m.bookings[i].Status = status
			b := m.bookings[i]
			return &b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) DeleteBooking(ctx context.Context, id int64) (bool, error) {
	for i := range m.bookings {
		if m.bookings[i].ID == id {
			m.bookings = append(m.bookings[:i], m.bookings[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GetPasswords(ctx context.Context) ([]string, error) { return m.passwords, nil }
func (m *memStore) AddPassword(ctx context.Context, p string) (bool, error) {
	m.passwords = append(m.passwords, p)
	return true, nil
}
func (m *memStore) DeletePassword(ctx context.Context, p string) (bool, error) { return false, nil }
func (m *memStore) Close() error                                               { return nil }

type captureNotifier struct {
	bookings []*models.Booking
	err      error
}

func (n *captureNotifier) EnqueueBookingNotification(ctx context.Context, b *models.Booking) error {
	if n.err != nil {
		return n.err
	}
	n.bookings = append(n.bookings, b)
	return nil
}

func testCatalog() []models.Service {
	return []models.Service{
		{ID: "deep-cleaning", Title: "Deep Cleaning"},
		{ID: "window-cleaning", Title: "Window Cleaning"},
	}
}

func newTestService(t *testing.T, st store.Store, notifier Notifier) *Service {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	return NewService(st, events.NewEventBus(), notifier, testCatalog(), &logger)
}

func validInput() models.BookingInput {
	return models.BookingInput{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Phone:   "203-424-9033",
		Address: "12 Main St",
		Service: "deep-cleaning",
		Date:    "2024-08-01",
		Time:    "10:00",
	}
}

var numberPattern = regexp.MustCompile(`^SPK[0-9A-Z]{6}$`)

func TestCreateBooking(t *testing.T) {
	st := &memStore{}
	notifier := &captureNotifier{}
	svc := newTestService(t, st, notifier)

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, created.Status)
	assert.Regexp(t, numberPattern, created.BookingNumber)
	assert.NotZero(t, created.ID)

	// Appears in the subsequent listing.
	listing, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, created.BookingNumber, listing[0].BookingNumber)

	// Persist first, notify second.
	require.Len(t, notifier.bookings, 1)
	assert.Equal(t, created.ID, notifier.bookings[0].ID)
}

func TestCreateBookingValidation(t *testing.T) {
	svc := newTestService(t, &memStore{}, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.BookingInput)
	}{
		{"missing name", func(in *models.BookingInput) { in.Name = "" }},
		{"missing email", func(in *models.BookingInput) { in.Email = "  " }},
		{"missing phone", func(in *models.BookingInput) { in.Phone = "" }},
		{"missing address", func(in *models.BookingInput) { in.Address = "" }},
		{"bad date", func(in *models.BookingInput) { in.Date = "01/08/2024" }},
		{"bad time", func(in *models.BookingInput) { in.Time = "10am" }},
		{"unknown service", func(in *models.BookingInput) { in.Service = "chimney-sweeping" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := svc.Create(ctx, input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateBookingNotifierFailureIsSoft(t *testing.T) {
	st := &memStore{}
	svc := newTestService(t, st, &captureNotifier{err: errors.New("collaborator down")})

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Len(t, st.bookings, 1)
}

func TestFindByBookingNumber(t *testing.T) {
	svc := newTestService(t, &memStore{}, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	got, err := svc.FindByBookingNumber(ctx, created.BookingNumber)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// Case-differing code still matches.
	got, err = svc.FindByBookingNumber(ctx, "spk"+created.BookingNumber[3:])
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.FindByBookingNumber(ctx, "SPKZZZZZZZZ")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.FindByBookingNumber(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConfirmBooking(t *testing.T) {
	svc := newTestService(t, &memStore{}, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.Equal(t, created.ID, confirmed.ID)
	assert.Equal(t, created.BookingNumber, confirmed.BookingNumber)

	// Confirming an already-confirmed booking is idempotent.
	again, err := svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, again.Status)
}

func TestRejectBooking(t *testing.T) {
	svc := newTestService(t, &memStore{}, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	// A settled booking cannot flip to the other settled state.
	_, err = svc.Confirm(ctx, created.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionNotFound(t *testing.T) {
	svc := newTestService(t, &memStore{}, nil)

	_, err := svc.Confirm(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteBooking(t *testing.T) {
	svc := newTestService(t, &memStore{}, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Deleting a non-existent id reports false and leaves the rest alone.
	deleted, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestGenerateNumberFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		number, err := generateNumber()
		require.NoError(t, err)
		assert.Regexp(t, numberPattern, number)
	}
}

func TestServiceTitle(t *testing.T) {
	svc := newTestService(t, &memStore{}, nil)
	assert.Equal(t, "Deep Cleaning", svc.ServiceTitle("deep-cleaning"))
	assert.Equal(t, "mystery", svc.ServiceTitle("mystery"))
}
