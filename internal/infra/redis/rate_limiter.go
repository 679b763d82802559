package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fincas-assistant/internal/domain/ports/repository"
)

var _ repository.RateLimiter = (*RateLimiter)(nil)

// RateLimiter counts hits per aligned window. Each window gets its own key:
// the base key plus the window start in unix seconds.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	if window <= 0 {
		window = time.Minute
	}
	start := r.now().Truncate(window).Unix()
	bucket := key + ":" + strconv.FormatInt(start, 10)

	count, err := r.client.Incr(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		// bucket lives one window past its close
		if err := r.client.Expire(ctx, bucket, 2*window); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// UserCommandKey scopes a counter to one Telegram user and one command.
func UserCommandKey(tgID int64, command string) string {
	return fmt.Sprintf("fincas:rl:%d:%s", tgID, command)
}
