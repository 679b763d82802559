package repository

import (
	"context"
	"time"

	"fincas-assistant/internal/domain/model"
)

// SessionStore keeps the authentication state per Telegram user.
// Get returns domain.ErrNotFound when no session exists.
type SessionStore interface {
	Get(ctx context.Context, tgID int64) (*model.Session, error)
	Put(ctx context.Context, s *model.Session, ttl time.Duration) error
	Delete(ctx context.Context, tgID int64) error
}

// AnswerCache memoizes answers by sanitized question.
// Get reports ok=false on a miss; errors are reserved for backend failures.
type AnswerCache interface {
	Get(ctx context.Context, question string) (answer string, ok bool, err error)
	Set(ctx context.Context, question, answer string) error
}

// RateLimiter is a fixed-window limiter keyed by an arbitrary string.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Locker guards work that must not run twice at once (e.g. a re-index).
// TryLock returns ok=false when someone else holds the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}
