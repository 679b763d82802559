package cache

import (
	"context"
	"testing"
	"time"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	_, err := s.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	in := &model.Session{TelegramID: 1, UserID: "u1", Token: "tok"}
	require.NoError(t, s.Put(ctx, in, time.Minute))
	in.Token = "mutated"

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token, "store must keep its own copy")

	require.NoError(t, s.Delete(ctx, 1))
	_, err = s.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, nil, time.Minute), domain.ErrInvalidArgument)
}

func TestSessionStore_Expires(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()
	require.NoError(t, s.Put(ctx, &model.Session{TelegramID: 2}, 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	_, err := s.Get(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnswerCache(t *testing.T) {
	ctx := context.Background()
	c := NewAnswerCache(time.Minute)

	_, ok, err := c.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "q", "a"))
	v, ok, err := c.Get(ctx, "q")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	r := NewRateLimiter()

	for i := 0; i < 2; i++ {
		ok, err := r.Allow(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := r.Allow(ctx, "k", 2, time.Minute)
	assert.False(t, ok)

	ok, _ = r.Allow(ctx, "other", 2, time.Minute)
	assert.True(t, ok)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	ctx := context.Background()
	r := NewRateLimiter()
	ok, _ := r.Allow(ctx, "k", 1, 20*time.Millisecond)
	assert.True(t, ok)
	ok, _ = r.Allow(ctx, "k", 1, 20*time.Millisecond)
	assert.False(t, ok)
	time.Sleep(40 * time.Millisecond)
	ok, _ = r.Allow(ctx, "k", 1, 20*time.Millisecond)
	assert.True(t, ok)
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()
	tok, ok, err := l.TryLock(ctx, "reindex", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(ctx, "reindex", time.Minute)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "reindex", tok))
	_, ok, _ = l.TryLock(ctx, "reindex", time.Minute)
	assert.True(t, ok)
}
