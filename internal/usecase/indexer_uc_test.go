package usecase

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/adapters/ai"
)

func docs(ids ...string) []*model.Document {
	out := make([]*model.Document, len(ids))
	for i, id := range ids {
		out[i] = &model.Document{ID: id, Content: "contenido " + id}
	}
	return out
}

func newIndexer(t *testing.T, d *fakeDocRepo, e *fakeEmbeddingRepo, l *fakeLocker, cfg IndexerConfig) *indexerUC {
	t.Helper()
	if cfg.FailedBatchesFile == "" {
		cfg.FailedBatchesFile = filepath.Join(t.TempDir(), "failed.log")
	}
	cfg.RetryInitial = time.Millisecond
	var locker repository.Locker
	if l != nil {
		locker = l
	}
	return NewIndexerUseCase(d, e, &fakeAI{}, ai.WordTokenizer{}, locker, cfg, newTestLogger())
}

func TestLoadDocuments_PagesUntilShortPage(t *testing.T) {
	repo := &fakeDocRepo{docs: docs("1", "2", "3", "4", "5")}
	uc := newIndexer(t, repo, &fakeEmbeddingRepo{}, nil, IndexerConfig{PageSize: 2})

	got, err := uc.LoadDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, 3, repo.pages)
}

func TestLoadDocuments_ExactPagesEndOnEmptyPage(t *testing.T) {
	repo := &fakeDocRepo{docs: docs("1", "2", "3", "4")}
	uc := newIndexer(t, repo, &fakeEmbeddingRepo{}, nil, IndexerConfig{PageSize: 2})

	got, err := uc.LoadDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 3, repo.pages)
}

func TestLoadDocuments_Error(t *testing.T) {
	boom := errors.New("timeout")
	uc := newIndexer(t, &fakeDocRepo{err: boom}, &fakeEmbeddingRepo{}, nil, IndexerConfig{})
	_, err := uc.LoadDocuments(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRun_SkipsInvalidAndSavesInBatches(t *testing.T) {
	all := append(docs("1", "2", "3"), &model.Document{ID: "", Content: "huérfano"}, &model.Document{ID: "9", Content: "  "})
	emb := &fakeEmbeddingRepo{}
	uc := newIndexer(t, &fakeDocRepo{docs: all}, emb, nil, IndexerConfig{BatchSize: 2})

	rep, err := uc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Loaded)
	assert.Equal(t, 2, rep.Invalid)
	assert.Equal(t, 3, rep.Embedded)
	assert.Equal(t, 3, rep.Saved)
	assert.Zero(t, rep.FailedBatches)
	assert.Equal(t, 2, emb.upserts)
	assert.NotEmpty(t, rep.RunID)

	require.Len(t, emb.saved, 3)
	assert.Equal(t, "1", emb.saved[0].DocumentID)
	assert.Equal(t, []float64{1, 0}, emb.saved[0].Embedding)
	assert.False(t, emb.saved[0].VectorizedAt.IsZero())
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	emb := &fakeEmbeddingRepo{upsertErrs: []error{errors.New("flaky"), nil}}
	uc := newIndexer(t, &fakeDocRepo{docs: docs("1", "2")}, emb, nil, IndexerConfig{MaxRetries: 3})

	rep, err := uc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Saved)
	assert.Equal(t, 2, emb.upserts)
}

func TestRun_SavesInsideTransaction(t *testing.T) {
	emb := &fakeEmbeddingRepo{upsertErrs: []error{errors.New("flaky"), nil}}
	txm := &fakeTxManager{}
	uc := newIndexer(t, &fakeDocRepo{docs: docs("1", "2")}, emb, nil, IndexerConfig{MaxRetries: 3}).WithTransactions(txm)

	rep, err := uc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Saved)
	assert.Equal(t, 1, txm.rollbacks)
	assert.Equal(t, 1, txm.commits)
	assert.Equal(t, []repository.Tx{"tx", "tx"}, emb.txs)
}

func TestRun_DumpsBatchAfterRetries(t *testing.T) {
	boom := errors.New("constraint")
	emb := &fakeEmbeddingRepo{upsertErrs: []error{boom, boom, nil}}
	dump := filepath.Join(t.TempDir(), "failed_batches.log")
	uc := newIndexer(t, &fakeDocRepo{docs: docs("1", "2", "3", "4")}, emb, nil,
		IndexerConfig{BatchSize: 2, MaxRetries: 2, FailedBatchesFile: dump})

	rep, err := uc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.FailedBatches)
	assert.Equal(t, 2, rep.Saved)
	assert.Equal(t, 3, emb.upserts)

	f, err := os.Open(dump)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
		assert.Contains(t, sc.Text(), `"document_id":"1"`)
	}
	assert.Equal(t, 1, lines)
}

func TestRun_EmbeddingCountMismatch(t *testing.T) {
	uc := newIndexer(t, &fakeDocRepo{docs: docs("1", "2")}, &fakeEmbeddingRepo{}, nil, IndexerConfig{})
	uc.ai = &fakeAI{EmbedFunc: func([]string) ([][]float64, error) { return [][]float64{{1}}, nil }}

	_, err := uc.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmbeddingMissing)
}

func TestRun_NothingToIndex(t *testing.T) {
	emb := &fakeEmbeddingRepo{}
	uc := newIndexer(t, &fakeDocRepo{}, emb, nil, IndexerConfig{})

	rep, err := uc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Loaded)
	assert.Zero(t, emb.upserts)
}

func TestRun_LockHeld(t *testing.T) {
	lock := &fakeLocker{held: true}
	uc := newIndexer(t, &fakeDocRepo{docs: docs("1")}, &fakeEmbeddingRepo{}, lock, IndexerConfig{})

	_, err := uc.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexInProgress)

	lock.held = false
	_, err = uc.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, lock.held, "lock is released after the run")
}

func TestRun_ReportDuration(t *testing.T) {
	uc := newIndexer(t, &fakeDocRepo{docs: docs("1")}, &fakeEmbeddingRepo{}, nil, IndexerConfig{})
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	uc.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}

	rep, err := uc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, rep.Duration)
	assert.Contains(t, rep.String(), "saved=1")
}
