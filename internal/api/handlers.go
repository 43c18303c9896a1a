package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sparkleclean/internal/metrics"
	"sparkleclean/internal/models"
	"sparkleclean/internal/session"
)

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.requireAdmin(s.listBookings)(w, r)
	case http.MethodPost:
		s.createBooking(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	var input models.BookingInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.bookings.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	metrics.IncBookingCreated()
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) handleBookingByNumber(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	code := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/number/")
	code = strings.TrimSpace(code)
	if code == "" || strings.Contains(code, "/") {
		writeError(w, http.StatusBadRequest, "booking number is required")
		return
	}

	found, err := s.bookings.FindByBookingNumber(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		found, err := s.bookings.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, found)

	case http.MethodPatch:
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		var updated *models.Booking
		switch body.Status {
		case models.StatusConfirmed:
			updated, err = s.bookings.Confirm(r.Context(), id)
		case models.StatusRejected:
			updated, err = s.bookings.Reject(r.Context(), id)
		default:
			writeError(w, http.StatusBadRequest, "status must be confirmed or rejected")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		deleted, err := s.bookings.Delete(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Login attempts get their own tighter window on top of the global limiter.
	allowed, err := s.sessions.CheckRateLimit(r.Context(), "login:"+clientKey(r), 10, time.Minute)
	if err != nil {
		s.logger.Error().Err(err).Msg("login rate limit check failed")
	} else if !allowed {
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	passwords, err := s.store.GetPasswords(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if !matchPassword(passwords, body.Password) {
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	sess := session.NewAdminSession(s.sessionTTL)
	if err := s.sessions.SetSession(r.Context(), sess); err != nil {
		s.logger.Error().Err(err).Msg("store session failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.sessions.ClearSession(r.Context(), sessionToken(r)); err != nil {
		s.logger.Error().Err(err).Msg("clear session failed")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *HTTPServer) handlePasswords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		passwords, err := s.store.GetPasswords(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"passwords": passwords})

	case http.MethodPost:
		var body struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(body.Password) == "" {
			writeError(w, http.StatusBadRequest, "password must not be empty")
			return
		}

		added, err := s.store.AddPassword(r.Context(), body.Password)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !added {
			writeError(w, http.StatusConflict, "password already exists")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]bool{"added": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handlePasswordDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/passwords/")
	password, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(password) == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	removed, err := s.store.DeletePassword(r.Context(), password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !removed {
		// Either unknown, or it is the last remaining password.
		writeError(w, http.StatusConflict, "password not removed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	services := s.catalog
	if services == nil {
		services = []models.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookings, err := s.bookings.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	path, err := s.exporter.BookingsWorkbook(bookings, s.bookings.ServiceTitle)
	if err != nil {
		s.logger.Error().Err(err).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(path))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, path)
}

// handleSmsGuide asks the drafting collaborator for the step-by-step SMS
// setup walkthrough, seeded with the most recent booking so the examples use
// real data.
func (s *HTTPServer) handleSmsGuide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.guide == nil {
		writeError(w, http.StatusServiceUnavailable, "notification drafting is not configured")
		return
	}

	sample := &models.Booking{
		Name:    "Jane Doe",
		Phone:   "555-0100",
		Address: "12 Main St",
		Service: "deep-cleaning",
		Date:    "2024-08-01",
		Time:    "10:00",
	}
	if bookings, err := s.bookings.List(r.Context()); err == nil && len(bookings) > 0 {
		sample = &bookings[len(bookings)-1]
	}

	doc, err := s.guide.DraftSmsExplanation(r.Context(), sample, s.bookings.ServiceTitle(sample.Service))
	if err != nil {
		s.logger.Error().Err(err).Msg("sms guide drafting failed")
		writeError(w, http.StatusBadGateway, "drafting service failed")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
