package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/metrics"
)

var _ repository.AnswerCache = (*AnswerCache)(nil)

type AnswerCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewAnswerCache(client RedisClient, ttl time.Duration) *AnswerCache {
	return &AnswerCache{client: client, ttl: ttl}
}

// AnswerKey hashes the sanitized question so arbitrary user text never ends up in a key.
func AnswerKey(question string) string {
	sum := sha256.Sum256([]byte(question))
	return "answer:" + hex.EncodeToString(sum[:])
}

func (c *AnswerCache) Get(ctx context.Context, question string) (string, bool, error) {
	v, err := c.client.Get(ctx, AnswerKey(question))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncCacheRequest("answer", "miss")
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	metrics.IncCacheRequest("answer", "hit")
	return v, true, nil
}

func (c *AnswerCache) Set(ctx context.Context, question, answer string) error {
	return c.client.Set(ctx, AnswerKey(question), answer, c.ttl)
}
