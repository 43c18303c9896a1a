package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sparkleclean/internal/booking"
	"sparkleclean/internal/config"
	"sparkleclean/internal/export"
	"sparkleclean/internal/models"
	"sparkleclean/internal/session"
	"sparkleclean/internal/store"

	"github.com/rs/zerolog"
)

// SmsGuideDrafter produces the SMS setup walkthrough document for the admin
// view.
type SmsGuideDrafter interface {
	DraftSmsExplanation(ctx context.Context, booking *models.Booking, serviceTitle string) (*models.SmsExplanation, error)
}

// HTTPServer exposes the booking and admin API.
type HTTPServer struct {
	cfg        config.ServerConfig
	bookings   *booking.Service
	store      store.Store
	sessions   session.Repository
	sessionTTL time.Duration
	exporter   *export.Exporter
	guide      SmsGuideDrafter
	catalog    []models.Service
	logger     *zerolog.Logger
	server     *http.Server
	limiter    *clientLimiter
}

func NewHTTPServer(
	cfg config.ServerConfig,
	bookings *booking.Service,
	st store.Store,
	sessions session.Repository,
	sessionTTL time.Duration,
	exporter *export.Exporter,
	guide SmsGuideDrafter,
	catalog []models.Service,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:        cfg,
		bookings:   bookings,
		store:      st,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		exporter:   exporter,
		guide:      guide,
		catalog:    catalog,
		logger:     logger,
		limiter:    newClientLimiter(cfg.RateLimit),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/export", srv.requireAdmin(srv.handleExport))
	mux.HandleFunc("/api/v1/bookings/number/", srv.handleBookingByNumber)
	mux.HandleFunc("/api/v1/bookings/", srv.requireAdmin(srv.handleBookingByID))
	mux.HandleFunc("/api/v1/admin/login", srv.handleLogin)
	mux.HandleFunc("/api/v1/admin/logout", srv.requireAdmin(srv.handleLogout))
	mux.HandleFunc("/api/v1/admin/sms-guide", srv.requireAdmin(srv.handleSmsGuide))
	mux.HandleFunc("/api/v1/passwords", srv.requireAdmin(srv.handlePasswords))
	mux.HandleFunc("/api/v1/passwords/", srv.requireAdmin(srv.handlePasswordDelete))
	mux.HandleFunc("/api/v1/services", srv.handleServices)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.rateLimitMiddleware(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "booking store is unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
