package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
)

// TokenSealer hides the JWT at rest. *security.TokenSealer satisfies it.
type TokenSealer interface {
	Seal(token string) (string, error)
	Open(sealed string) (string, error)
}

var _ repository.SessionStore = (*SessionStore)(nil)

// SessionStore keeps one JSON session per Telegram user under session:<tgID>.
type SessionStore struct {
	client RedisClient
	sealer TokenSealer // nil stores the token as is
}

func NewSessionStore(client RedisClient, sealer TokenSealer) *SessionStore {
	return &SessionStore{client: client, sealer: sealer}
}

func sessionKey(tgID int64) string { return fmt.Sprintf("session:%d", tgID) }

func (s *SessionStore) Put(ctx context.Context, sess *model.Session, ttl time.Duration) error {
	if sess == nil {
		return domain.ErrInvalidArgument
	}
	stored := *sess
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(sess.Token)
		if err != nil {
			return fmt.Errorf("seal session token: %w", err)
		}
		stored.Token = sealed
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(sess.TelegramID), data, ttl)
}

func (s *SessionStore) Get(ctx context.Context, tgID int64) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(tgID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.sealer != nil {
		tok, err := s.sealer.Open(sess.Token)
		if err != nil {
			// a rotated key makes old sessions unreadable; treat as logged out
			_ = s.client.Del(ctx, sessionKey(tgID))
			return nil, domain.ErrNotFound
		}
		sess.Token = tok
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, tgID int64) error {
	return s.client.Del(ctx, sessionKey(tgID))
}
