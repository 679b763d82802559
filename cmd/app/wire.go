// File: cmd/app/wire.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"fincas-assistant/internal/config"
	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/adapters/ai"
	"fincas-assistant/internal/infra/cache"
	pg "fincas-assistant/internal/infra/db/postgres"
	infrahttp "fincas-assistant/internal/infra/http"
	"fincas-assistant/internal/infra/logging"
	red "fincas-assistant/internal/infra/redis"
	"fincas-assistant/internal/infra/security"
	"fincas-assistant/internal/usecase"
)

const poolStatsEvery = 15 * time.Second

// deps holds the shared infrastructure every command builds on.
type deps struct {
	cfg *config.Config
	log *zerolog.Logger

	pool  *pgxpool.Pool
	redis red.RedisClient // nil without redis.url

	users      repository.UserRepository
	docs       repository.DocumentRepository
	embeddings repository.EmbeddingRepository
	sessions   repository.SessionStore
	answers    repository.AnswerCache
	limiter    repository.RateLimiter
	locker     repository.Locker

	checkers []infrahttp.Checker
}

func buildDeps(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*deps, error) {
	d := &deps{cfg: cfg, log: logger}

	pool, err := pg.Connect(ctx, cfg.Database, logging.Component(logger, "postgres"))
	if err != nil {
		return nil, err
	}
	d.pool = pool
	d.checkers = append(d.checkers, pg.NewChecker(pool))

	var users repository.UserRepository = pg.NewUserRepo(pool, cfg.Database.UsersTable)
	d.docs = pg.NewDocumentRepo(pool, cfg.Database.DocumentsTable)
	d.embeddings = pg.NewEmbeddingRepo(pool, cfg.Database.EmbeddingsTable)

	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		d.redis = rc

		var sealer red.TokenSealer
		if cfg.Security.EncryptionKey != "" {
			s, err := security.NewTokenSealer(cfg.Security.EncryptionKey)
			if err != nil {
				d.Close()
				return nil, err
			}
			sealer = s
		}
		users = pg.NewUserRepoCacheDecorator(users, rc, cfg.Redis.TTL)
		d.sessions = red.NewSessionStore(rc, sealer)
		d.answers = red.NewAnswerCache(rc, cfg.RAG.CacheTTL)
		d.limiter = red.NewRateLimiter(rc)
		d.locker = red.NewLocker(rc)
		d.checkers = append(d.checkers, red.NewChecker(rc))
		logger.Info().Msg("using redis for sessions, cache and locks")
	} else {
		d.sessions = cache.NewSessionStore()
		d.answers = cache.NewAnswerCache(cfg.RAG.CacheTTL)
		d.limiter = cache.NewRateLimiter()
		d.locker = cache.NewLocker()
		logger.Info().Msg("redis not configured; using in-process cache")
	}
	d.users = users
	return d, nil
}

func (d *deps) Close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.log.Warn().Err(err).Msg("redis close")
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// buildAI assembles the provider chain: routing, then breaker, then
// throttling, then a concurrency cap on the outside.
func buildAI(ctx context.Context, cfg config.AIConfig) (adapter.AIServiceAdapter, error) {
	providers := map[string]adapter.AIServiceAdapter{}
	if cfg.OpenAIKey != "" {
		oa, err := ai.NewOpenAIAdapter(ai.OpenAIConfig{
			APIKey:         cfg.OpenAIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.Timeout,
			MaxRetries:     cfg.MaxRetries,
			ChunkInputs:    cfg.EmbedChunkInputs,
		})
		if err != nil {
			return nil, err
		}
		providers["openai"] = oa
	}
	if cfg.GeminiKey != "" {
		gm, err := ai.NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.ChatModel, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		providers["gemini"] = gm
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no AI provider configured")
	}

	var chain adapter.AIServiceAdapter = ai.NewMultiAIAdapter(cfg.Provider, cfg.EmbedProvider, providers)
	chain = ai.NewBreakerAI(chain, cfg.BreakerFailures, cfg.BreakerRecovery)
	chain = ai.NewThrottledAI(chain, cfg.RequestsPerSec)
	chain = ai.NewLimitedAI(chain, cfg.ConcurrentLimit)
	return chain, nil
}

func (d *deps) assistant(aiSvc adapter.AIServiceAdapter) usecase.AssistantUseCase {
	return usecase.NewAssistantUseCase(aiSvc, d.embeddings, d.answers, usecase.AssistantConfig{
		TopK:              d.cfg.RAG.TopK,
		MaxContextWords:   d.cfg.RAG.MaxContextWords,
		MaxQuestionLength: d.cfg.RAG.MaxQuestionLength,
		ChatModel:         d.cfg.AI.ChatModel,
		Temperature:       d.cfg.AI.Temperature,
	}, logging.Component(d.log, "assistant"))
}

func (d *deps) indexer(aiSvc adapter.AIServiceAdapter) usecase.IndexerUseCase {
	uc := usecase.NewIndexerUseCase(
		d.docs, d.embeddings, aiSvc,
		ai.NewTokenizer(d.log),
		d.locker,
		usecase.IndexerConfig{
			PageSize:          d.cfg.Indexer.PageSize,
			BatchSize:         d.cfg.Indexer.BatchSize,
			MaxTokens:         d.cfg.Indexer.MaxTokens,
			MaxRetries:        d.cfg.Indexer.MaxRetries,
			FailedBatchesFile: d.cfg.Indexer.FailedBatchesFile,
		},
		logging.Component(d.log, "indexer"),
	)
	return uc.WithTransactions(pg.NewTxManager(d.pool))
}

func (d *deps) auth() (usecase.AuthUseCase, error) {
	return usecase.NewAuthUseCase(d.users, usecase.AuthConfig{
		SecretKey: d.cfg.Auth.SecretKey,
		Algorithm: d.cfg.Auth.Algorithm,
		TTL:       d.cfg.Auth.AccessTokenTTL,
	}, logging.Component(d.log, "auth"))
}
