// File: internal/usecase/indexer_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/logging"
	"fincas-assistant/internal/infra/metrics"
)

const indexLockKey = "reindex"

// Compile-time check
var _ IndexerUseCase = (*indexerUC)(nil)

type IndexerUseCase interface {
	LoadDocuments(ctx context.Context) ([]*model.Document, error)
	Run(ctx context.Context) (*IndexReport, error)
}

// IndexReport summarizes one indexer run.
type IndexReport struct {
	RunID         string        `json:"run_id"`
	Loaded        int           `json:"loaded"`
	Invalid       int           `json:"invalid"`
	Embedded      int           `json:"embedded"`
	Saved         int           `json:"saved"`
	FailedBatches int           `json:"failed_batches"`
	Duration      time.Duration `json:"duration"`
}

type IndexerConfig struct {
	PageSize          int
	BatchSize         int
	MaxTokens         int
	MaxRetries        int
	FailedBatchesFile string
	RetryInitial      time.Duration // first backoff interval between save attempts
	LockTTL           time.Duration
}

type indexerUC struct {
	docs       repository.DocumentRepository
	embeddings repository.EmbeddingRepository
	ai         adapter.AIServiceAdapter
	tokenizer  adapter.Tokenizer
	locker     repository.Locker             // optional
	txm        repository.TransactionManager // optional
	cfg        IndexerConfig
	log        *zerolog.Logger
	now        func() time.Time
}

func NewIndexerUseCase(
	docs repository.DocumentRepository,
	embeddings repository.EmbeddingRepository,
	ai adapter.AIServiceAdapter,
	tokenizer adapter.Tokenizer,
	locker repository.Locker,
	cfg IndexerConfig,
	logger *zerolog.Logger,
) *indexerUC {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.FailedBatchesFile == "" {
		cfg.FailedBatchesFile = "failed_batches.log"
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Hour
	}
	return &indexerUC{
		docs: docs, embeddings: embeddings, ai: ai, tokenizer: tokenizer, locker: locker,
		cfg: cfg, log: logger, now: time.Now,
	}
}

// WithTransactions makes each batch save atomic: a failed attempt leaves no
// partial rows behind.
func (u *indexerUC) WithTransactions(txm repository.TransactionManager) *indexerUC {
	u.txm = txm
	return u
}

func (u *indexerUC) LoadDocuments(ctx context.Context) ([]*model.Document, error) {
	defer logging.TraceDuration(u.log, "IndexerUC.LoadDocuments")()
	var all []*model.Document
	for page := 0; ; page++ {
		batch, err := u.docs.ListPage(ctx, nil, page*u.cfg.PageSize, u.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("load documents page %d: %w", page+1, err)
		}
		if len(batch) == 0 {
			break
		}
		u.log.Info().Int("page", page+1).Int("rows", len(batch)).Msg("documents page loaded")
		all = append(all, batch...)
		if len(batch) < u.cfg.PageSize {
			break
		}
	}
	u.log.Info().Int("total", len(all)).Msg("documents loaded")
	return all, nil
}

func (u *indexerUC) Run(ctx context.Context) (*IndexReport, error) {
	start := u.now()
	rep := &IndexReport{RunID: ulid.Make().String()}
	log := u.log.With().Str("run_id", rep.RunID).Logger()

	if u.locker != nil {
		token, ok, err := u.locker.TryLock(ctx, indexLockKey, u.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire index lock: %w", err)
		}
		if !ok {
			return nil, domain.ErrIndexInProgress
		}
		defer func() {
			if err := u.locker.Unlock(context.Background(), indexLockKey, token); err != nil {
				log.Warn().Err(err).Msg("release index lock")
			}
		}()
	}

	docs, err := u.LoadDocuments(ctx)
	if err != nil {
		return rep, err
	}
	rep.Loaded = len(docs)

	valid := make([]*model.Document, 0, len(docs))
	texts := make([]string, 0, len(docs))
	for i, d := range docs {
		if d == nil || !d.Valid() {
			rep.Invalid++
			metrics.IncInvalidDocument()
			log.Warn().Int("index", i).Msg("document skipped: missing id or empty content")
			continue
		}
		valid = append(valid, d)
		texts = append(texts, PreprocessText(d.Content, u.cfg.MaxTokens, u.tokenizer))
	}
	if rep.Invalid > 0 {
		log.Warn().Int("invalid", rep.Invalid).Msg("invalid documents skipped")
	}
	if len(texts) == 0 {
		rep.Duration = u.now().Sub(start)
		log.Info().Msg("nothing to index")
		return rep, nil
	}

	vecs, err := u.ai.Embed(ctx, texts)
	if err != nil {
		return rep, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vecs) != len(texts) {
		return rep, fmt.Errorf("got %d embeddings for %d texts: %w", len(vecs), len(texts), domain.ErrEmbeddingMissing)
	}
	rep.Embedded = len(vecs)
	metrics.AddEmbeddings(len(vecs))
	log.Info().Int("embeddings", len(vecs)).Str("provider", u.ai.Provider()).Msg("embeddings generated")

	stamp := u.now().UTC()
	rows := make([]*model.DocumentEmbedding, len(valid))
	for i, d := range valid {
		rows[i] = &model.DocumentEmbedding{
			DocumentID:   d.ID,
			Content:      d.Content,
			Embedding:    vecs[i],
			VectorizedAt: stamp,
		}
	}

	for i := 0; i < len(rows); i += u.cfg.BatchSize {
		end := i + u.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[i:end]
		if err := u.saveBatch(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			rep.FailedBatches++
			metrics.IncFailedBatch()
			log.Error().Err(err).Int("batch_start", i).Int("size", len(batch)).Msg("batch failed after retries, dumping")
			if derr := u.dumpBatch(batch); derr != nil {
				log.Error().Err(derr).Str("file", u.cfg.FailedBatchesFile).Msg("could not dump failed batch")
			}
			continue
		}
		rep.Saved += len(batch)
		log.Info().Int("size", len(batch)).Msg("batch saved")
	}

	rep.Duration = u.now().Sub(start)
	log.Info().Interface("report", rep).Msg("index run finished")
	return rep, nil
}

// saveBatch makes up to MaxRetries attempts with exponential backoff.
func (u *indexerUC) saveBatch(ctx context.Context, batch []*model.DocumentEmbedding) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = u.cfg.RetryInitial
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(u.cfg.MaxRetries-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := u.upsert(ctx, batch)
		if err != nil {
			u.log.Warn().Err(err).Int("attempt", attempt).Msg("batch save failed")
		}
		return err
	}, bo)
}

func (u *indexerUC) upsert(ctx context.Context, batch []*model.DocumentEmbedding) error {
	if u.txm == nil {
		return u.embeddings.UpsertBatch(ctx, nil, batch)
	}
	return u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.embeddings.UpsertBatch(ctx, tx, batch)
	})
}

// dumpBatch appends the batch as one JSON line.
func (u *indexerUC) dumpBatch(batch []*model.DocumentEmbedding) error {
	f, err := os.OpenFile(u.cfg.FailedBatchesFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// String renders the report for CLI output.
func (r *IndexReport) String() string {
	return fmt.Sprintf("run %s: loaded=%d invalid=%d embedded=%d saved=%d failed_batches=%d in %s",
		r.RunID, r.Loaded, r.Invalid, r.Embedded, r.Saved, r.FailedBatches, r.Duration.Round(time.Millisecond))
}
