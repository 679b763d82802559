package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/metrics"
	red "fincas-assistant/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches id and phone lookups, which happen on every
// question. Username lookups need the password hash, which never leaves the
// database, so they always go to the inner repository.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &userRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func idKey(id string) string       { return fmt.Sprintf("user:id:%s", id) }
func phoneKey(phone string) string { return fmt.Sprintf("user:phone:%s", phone) }

func (d *userRepoCacheDecorator) cached(ctx context.Context, key string) *model.User {
	val, err := d.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	var u model.User
	if json.Unmarshal([]byte(val), &u) != nil {
		return nil
	}
	return &u
}

func (d *userRepoCacheDecorator) warm(ctx context.Context, u *model.User) {
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	_ = d.cache.Set(ctx, idKey(u.ID), b, d.ttl)
	if u.Phone != "" {
		_ = d.cache.Set(ctx, phoneKey(u.Phone), b, d.ttl)
	}
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if u := d.cached(ctx, idKey(id)); u != nil {
		metrics.IncCacheRequest("user", "hit")
		return u, nil
	}
	metrics.IncCacheRequest("user", "miss")
	u, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, u)
	return u, nil
}

func (d *userRepoCacheDecorator) FindByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.User, error) {
	if u := d.cached(ctx, phoneKey(phone)); u != nil {
		metrics.IncCacheRequest("user", "hit")
		return u, nil
	}
	metrics.IncCacheRequest("user", "miss")
	u, err := d.inner.FindByPhone(ctx, tx, phone)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, u)
	return u, nil
}

func (d *userRepoCacheDecorator) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	return d.inner.FindByUsername(ctx, tx, username)
}
