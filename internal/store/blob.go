package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"sparkleclean/internal/models"

	"github.com/rs/zerolog"
)

// BlobStore keeps the whole collection in a single remote JSON document with
// whole-document GET and whole-document POST replace.
//
// Writes within this process are serialized behind a mutex so the store never
// interleaves its own read-modify-write cycles. Concurrent writers in other
// processes still race at whole-document granularity; that is inherent to the
// blob protocol, which is why sqlite is the default backend.
type BlobStore struct {
	url    string
	client *http.Client
	logger *zerolog.Logger

	mu sync.Mutex
}

func NewBlobStore(url string, timeout time.Duration, logger *zerolog.Logger) *BlobStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BlobStore{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// fetchDocument loads the remote document. An absent or malformed document is
// replaced with the initial seed and written back once; a transport failure or
// server error returns ErrStoreUnavailable without touching remote state, so a
// transient outage can never destroy a valid document.
func (s *BlobStore) fetchDocument(ctx context.Context) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Document{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return s.initialize(ctx, "document missing")
	case resp.StatusCode >= 500:
		return Document{}, fmt.Errorf("%w: blob store returned status %d", ErrStoreUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Document{}, fmt.Errorf("blob store returned status %d", resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return s.initialize(ctx, "document malformed")
	}
	if doc.Bookings == nil && doc.AdminPasswords == nil {
		return s.initialize(ctx, "document has unexpected shape")
	}

	if doc.Bookings == nil {
		doc.Bookings = []models.Booking{}
	}
	if doc.AdminPasswords == nil {
		doc.AdminPasswords = []string{}
	}
	return doc, nil
}

func (s *BlobStore) initialize(ctx context.Context, reason string) (Document, error) {
	s.logger.Warn().Str("reason", reason).Msg("initializing blob document with default data")
	doc := InitialDocument()
	if err := s.writeDocument(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("initialize blob document: %w", err)
	}
	return doc, nil
}

func (s *BlobStore) writeDocument(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("blob update failed with status %d", resp.StatusCode)
	}
	return nil
}

func (s *BlobStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Bookings, nil
}

func (s *BlobStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}
	for i := range doc.Bookings {
		if doc.Bookings[i].ID == id {
			return &doc.Bookings[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *BlobStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return err
	}

	// Max-plus-one id assignment at whole-document granularity.
	var maxID int64
	for _, b := range doc.Bookings {
		if b.ID > maxID {
			maxID = b.ID
		}
	}
	booking.ID = maxID + 1

	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	doc.Bookings = append(doc.Bookings, *booking)
	return s.writeDocument(ctx, doc)
}

func (s *BlobStore) UpdateBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	for i := range doc.Bookings {
		if doc.Bookings[i].ID == id {
			doc.Bookings[i].Status = status
			doc.Bookings[i].UpdatedAt = time.Now().UTC()
			if err := s.writeDocument(ctx, doc); err != nil {
				return nil, err
			}
			updated := doc.Bookings[i]
			return &updated, nil
		}
	}
	return nil, ErrNotFound
}

func (s *BlobStore) DeleteBooking(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return false, err
	}

	remaining := doc.Bookings[:0]
	for _, b := range doc.Bookings {
		if b.ID != id {
			remaining = append(remaining, b)
		}
	}
	if len(remaining) == len(doc.Bookings) {
		return false, nil
	}

	doc.Bookings = remaining
	if err := s.writeDocument(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *BlobStore) GetPasswords(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	// An empty set would lock the admin out permanently; reseed it. The
	// document was reachable, so the write-back is safe here.
	if len(doc.AdminPasswords) == 0 {
		doc.AdminPasswords = models.DefaultAdminPasswords()
		if err := s.writeDocument(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc.AdminPasswords, nil
}

func (s *BlobStore) AddPassword(ctx context.Context, password string) (bool, error) {
	if strings.TrimSpace(password) == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return false, err
	}

	for _, p := range doc.AdminPasswords {
		if p == password {
			return false, nil
		}
	}

	doc.AdminPasswords = append(doc.AdminPasswords, password)
	if err := s.writeDocument(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *BlobStore) DeletePassword(ctx context.Context, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return false, err
	}

	if len(doc.AdminPasswords) <= 1 {
		return false, nil
	}

	remaining := doc.AdminPasswords[:0]
	for _, p := range doc.AdminPasswords {
		if p != password {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == len(doc.AdminPasswords) {
		return false, nil
	}

	doc.AdminPasswords = remaining
	if err := s.writeDocument(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *BlobStore) Close() error {
	return nil
}
