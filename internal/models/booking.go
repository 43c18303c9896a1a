package models

import (
	"strings"
	"time"
)

type Booking struct {
	ID            int64     `json:"id"`
	BookingNumber string    `json:"bookingNumber"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	Service       string    `json:"service"`
	Date          string    `json:"date"` // YYYY-MM-DD
	Time          string    `json:"time"` // HH:MM
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BookingInput is what the booking form submits: a booking without the
// server-assigned fields (id, booking number, status, timestamps).
type BookingInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Notes   string `json:"notes,omitempty"`
}

// ValidStatus reports whether s is one of the known booking statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected:
		return true
	}
	return false
}

// MatchesNumber compares booking numbers case-insensitively.
func (b *Booking) MatchesNumber(code string) bool {
	return strings.EqualFold(b.BookingNumber, strings.TrimSpace(code))
}
