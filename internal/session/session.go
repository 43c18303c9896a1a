package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AdminSession is an authenticated admin login. The token is the opaque value
// handed back to the client after a successful password exchange.
type AdminSession struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Repository stores active admin sessions and per-client rate-limit counters.
type Repository interface {
	GetSession(ctx context.Context, token string) (*AdminSession, error)
	SetSession(ctx context.Context, session *AdminSession) error
	ClearSession(ctx context.Context, token string) error
	CheckRateLimit(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error)
}

// NewAdminSession mints a session with a fresh random token.
func NewAdminSession(ttl time.Duration) *AdminSession {
	now := time.Now().UTC()
	return &AdminSession{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session is past its expiry.
func (s *AdminSession) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
