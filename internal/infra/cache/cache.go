// Package cache holds process-local stores backed by go-cache.
// They stand in for the Redis stores when no REDIS_URL is configured.
package cache

import (
	"context"
	"fmt"
	"time"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/metrics"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

const cleanupInterval = 5 * time.Minute

var (
	_ repository.SessionStore = (*SessionStore)(nil)
	_ repository.AnswerCache  = (*AnswerCache)(nil)
	_ repository.RateLimiter  = (*RateLimiter)(nil)
	_ repository.Locker       = (*Locker)(nil)
)

// -----------------------------
// Sessions
// -----------------------------

type SessionStore struct {
	c *gocache.Cache
}

func NewSessionStore() *SessionStore {
	return &SessionStore{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func sessionKey(tgID int64) string { return fmt.Sprintf("%d", tgID) }

func (s *SessionStore) Get(_ context.Context, tgID int64) (*model.Session, error) {
	v, ok := s.c.Get(sessionKey(tgID))
	if !ok {
		return nil, domain.ErrNotFound
	}
	sess := v.(model.Session)
	return &sess, nil
}

func (s *SessionStore) Put(_ context.Context, sess *model.Session, ttl time.Duration) error {
	if sess == nil {
		return domain.ErrInvalidArgument
	}
	s.c.Set(sessionKey(sess.TelegramID), *sess, ttl)
	return nil
}

func (s *SessionStore) Delete(_ context.Context, tgID int64) error {
	s.c.Delete(sessionKey(tgID))
	return nil
}

// -----------------------------
// Answers
// -----------------------------

type AnswerCache struct {
	c *gocache.Cache
}

func NewAnswerCache(ttl time.Duration) *AnswerCache {
	return &AnswerCache{c: gocache.New(ttl, cleanupInterval)}
}

func (a *AnswerCache) Get(_ context.Context, question string) (string, bool, error) {
	v, ok := a.c.Get(question)
	if !ok {
		metrics.IncCacheRequest("answer", "miss")
		return "", false, nil
	}
	metrics.IncCacheRequest("answer", "hit")
	return v.(string), true, nil
}

func (a *AnswerCache) Set(_ context.Context, question, answer string) error {
	a.c.SetDefault(question, answer)
	return nil
}

// -----------------------------
// Rate limiting
// -----------------------------

// RateLimiter counts hits per key in windows that start with the first hit.
type RateLimiter struct {
	c *gocache.Cache
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{c: gocache.New(time.Minute, cleanupInterval)}
}

func (r *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	for {
		if err := r.c.Add(key, 1, window); err == nil {
			return limit >= 1, nil
		}
		n, err := r.c.IncrementInt(key, 1)
		if err != nil {
			// window expired between Add and Increment
			continue
		}
		return n <= limit, nil
	}
}

// -----------------------------
// Locks
// -----------------------------

type Locker struct {
	c *gocache.Cache
}

func NewLocker() *Locker {
	return &Locker{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	if err := l.c.Add(key, token, ttl); err != nil {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock is best effort: go-cache has no compare-and-delete.
func (l *Locker) Unlock(_ context.Context, key, token string) error {
	if v, ok := l.c.Get(key); ok && v.(string) == token {
		l.c.Delete(key)
	}
	return nil
}
