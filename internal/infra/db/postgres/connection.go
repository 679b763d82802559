package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"fincas-assistant/internal/config"
	"fincas-assistant/internal/infra/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

const (
	connectAttempts = 3
	connectTimeout  = 5 * time.Second
)

// ValidateDSN rejects anything that is not an absolute postgres:// URL with a host.
func ValidateDSN(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid database url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("invalid database url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("database url has no host")
	}
	return nil
}

// Connect opens a pgx pool and pings it, retrying with exponential backoff.
// The connection gauge and latency histogram track each attempt.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*pgxpool.Pool, error) {
	if err := ValidateDSN(cfg.URL); err != nil {
		metrics.SetConnectionStatus(false)
		return nil, err
	}
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	var pool *pgxpool.Pool
	attempt := 0
	op := func() error {
		attempt++
		start := time.Now()
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		p, err := pgxpool.ConnectConfig(cctx, pcfg)
		if err == nil {
			err = p.Ping(cctx)
			if err != nil {
				p.Close()
			}
		}
		metrics.ObserveConnectionLatency(time.Since(start))
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("database connection failed")
			return err
		}
		pool = p
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectAttempts-1), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		metrics.SetConnectionStatus(false)
		return nil, fmt.Errorf("connect database after %d attempts: %w", attempt, err)
	}
	metrics.SetConnectionStatus(true)
	logger.Info().Int("attempt", attempt).Msg("database connected")
	return pool, nil
}

// ReportPoolStats publishes pool gauges until ctx is done.
func ReportPoolStats(ctx context.Context, pool *pgxpool.Pool, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}

// Checker pings the pool for health endpoints.
type Checker struct {
	pool *pgxpool.Pool
}

func NewChecker(pool *pgxpool.Pool) *Checker { return &Checker{pool: pool} }

func (c *Checker) Name() string { return "database" }

func (c *Checker) Check(ctx context.Context) error {
	err := c.pool.Ping(ctx)
	metrics.SetConnectionStatus(err == nil)
	return err
}
