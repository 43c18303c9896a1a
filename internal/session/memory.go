package session

import (
	"context"
	"sync"
	"time"
)

type MemoryRepository struct {
	sessions   sync.Map
	rateLimits sync.Map
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) GetSession(ctx context.Context, token string) (*AdminSession, error) {
	val, ok := r.sessions.Load(token)
	if !ok {
		return nil, nil
	}
	session := val.(*AdminSession)
	if session.Expired() {
		r.sessions.Delete(token)
		return nil, nil
	}
	return session, nil
}

func (r *MemoryRepository) SetSession(ctx context.Context, session *AdminSession) error {
	r.sessions.Store(session.Token, session)
	return nil
}

func (r *MemoryRepository) ClearSession(ctx context.Context, token string) error {
	r.sessions.Delete(token)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryRepository) CheckRateLimit(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(clientID)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(clientID, entry)
	return entry.count <= limit, nil
}
