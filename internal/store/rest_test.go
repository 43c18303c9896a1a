package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"sparkleclean/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCollectionServer emulates a REST booking collection endpoint with
// server-assigned ids, plus an adminPasswords collection.
type fakeCollectionServer struct {
	mu        sync.Mutex
	bookings  map[int64]models.Booking
	passwords []string
	nextID    int64
	lastKey   string
}

func newFakeCollectionServer() *fakeCollectionServer {
	return &fakeCollectionServer{
		bookings:  make(map[int64]models.Booking),
		passwords: []string{"one", "two"},
		nextID:    1,
	}
}

func (f *fakeCollectionServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/bookings", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastKey = r.Header.Get("X-API-Key")

		switch r.Method {
		case http.MethodGet:
			list := make([]models.Booking, 0, len(f.bookings))
			for _, b := range f.bookings {
				list = append(list, b)
			}
			json.NewEncoder(w).Encode(list)
		case http.MethodPost:
			var b models.Booking
			json.NewDecoder(r.Body).Decode(&b)
			b.ID = f.nextID
			f.nextID++
			f.bookings[b.ID] = b
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(b)
		}
	})

	mux.HandleFunc("/bookings/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/bookings/"), 10, 64)
		b, ok := f.bookings[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(b)
		case http.MethodPatch:
			var patch map[string]string
			json.NewDecoder(r.Body).Decode(&patch)
			b.Status = patch["status"]
			f.bookings[id] = b
			json.NewEncoder(w).Encode(b)
		case http.MethodDelete:
			delete(f.bookings, id)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	mux.HandleFunc("/adminPasswords", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(f.passwords)
		case http.MethodPost:
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			f.passwords = append(f.passwords, body["password"])
			w.WriteHeader(http.StatusCreated)
		}
	})

	mux.HandleFunc("/adminPasswords/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		raw := strings.TrimPrefix(r.URL.Path, "/adminPasswords/")
		password, _ := url.PathUnescape(raw)
		for i, p := range f.passwords {
			if p == password {
				f.passwords = append(f.passwords[:i], f.passwords[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	return mux
}

func newRESTStore(t *testing.T, baseURL string) *RESTStore {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	return NewRESTStore(baseURL, "test-key", 5*time.Second, &logger)
}

func TestRESTCreateAndListBookings(t *testing.T) {
	fake := newFakeCollectionServer()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := newRESTStore(t, srv.URL)
	ctx := context.Background()

	b := &models.Booking{BookingNumber: "SPKAAAAAA", Name: "Jane Doe", Status: models.StatusPending}
	require.NoError(t, s.CreateBooking(ctx, b))
	assert.Equal(t, int64(1), b.ID)
	assert.Equal(t, "test-key", fake.lastKey)

	bookings, err := s.ListBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestRESTGetBooking(t *testing.T) {
	fake := newFakeCollectionServer()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := newRESTStore(t, srv.URL)
	ctx := context.Background()

	b := &models.Booking{BookingNumber: "SPKAAAAAA", Status: models.StatusPending}
	require.NoError(t, s.CreateBooking(ctx, b))

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "SPKAAAAAA", got.BookingNumber)

	_, err = s.GetBooking(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRESTUpdateBookingStatus(t *testing.T) {
	fake := newFakeCollectionServer()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := newRESTStore(t, srv.URL)
	ctx := context.Background()

	b := &models.Booking{BookingNumber: "SPKAAAAAA", Status: models.StatusPending}
	require.NoError(t, s.CreateBooking(ctx, b))

	updated, err := s.UpdateBookingStatus(ctx, b.ID, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)

	_, err = s.UpdateBookingStatus(ctx, 999, models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRESTDeleteBooking(t *testing.T) {
	fake := newFakeCollectionServer()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := newRESTStore(t, srv.URL)
	ctx := context.Background()

	b := &models.Booking{BookingNumber: "SPKAAAAAA", Status: models.StatusPending}
	require.NoError(t, s.CreateBooking(ctx, b))

	deleted, err := s.DeleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRESTPasswordRules(t *testing.T) {
	fake := newFakeCollectionServer()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := newRESTStore(t, srv.URL)
	ctx := context.Background()

	added, err := s.AddPassword(ctx, "one")
	require.NoError(t, err)
	assert.False(t, added, "duplicate must be rejected")

	added, err = s.AddPassword(ctx, "three")
	require.NoError(t, err)
	assert.True(t, added)

	deleted, err := s.DeletePassword(ctx, "three")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeletePassword(ctx, "two")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeletePassword(ctx, "one")
	require.NoError(t, err)
	assert.False(t, deleted, "last password must survive")
}

func TestRESTUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newRESTStore(t, srv.URL)
	_, err := s.ListBookings(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
