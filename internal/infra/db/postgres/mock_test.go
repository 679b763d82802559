//go:build !integration

package postgres

import (
	"context"
	"time"

	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
	red "fincas-assistant/internal/infra/redis"
)

// mockInnerUserRepo mocks the database repository that the User decorator wraps.
type mockInnerUserRepo struct {
	FindByIDFunc       func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	FindByUsernameFunc func(ctx context.Context, tx repository.Tx, username string) (*model.User, error)
	FindByPhoneFunc    func(ctx context.Context, tx repository.Tx, phone string) (*model.User, error)
}

func (m *mockInnerUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerUserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	return m.FindByUsernameFunc(ctx, tx, username)
}
func (m *mockInnerUserRepo) FindByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.User, error) {
	return m.FindByPhoneFunc(ctx, tx, phone)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Del(context.Context, ...string) error              { return nil }
func (m *mockRedisClient) DelIfEquals(context.Context, string, string) error { return nil }
func (m *mockRedisClient) Ping(context.Context) error                        { return nil }
func (m *mockRedisClient) Incr(context.Context, string) (int64, error)       { return 0, nil }
func (m *mockRedisClient) Expire(context.Context, string, time.Duration) error {
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
