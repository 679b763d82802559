// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/adapter"
	"fincas-assistant/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// memUserRepo is a small in-memory implementation used by unit tests.
type memUserRepo struct {
	mu    sync.RWMutex
	byID  map[string]*model.User
	err   error // returned by every lookup when set
	calls []string
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	m := &memUserRepo{byID: map[string]*model.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id })
}

func (m *memUserRepo) FindByUsername(_ context.Context, _ repository.Tx, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username })
}

func (m *memUserRepo) FindByPhone(_ context.Context, _ repository.Tx, phone string) (*model.User, error) {
	m.mu.Lock()
	m.calls = append(m.calls, phone)
	m.mu.Unlock()
	return m.find(func(u *model.User) bool { return u.Phone == phone })
}

// fakeAI answers from funcs; nil funcs give canned results.
type fakeAI struct {
	mu        sync.Mutex
	ChatFunc  func(msgs []adapter.Message, opts adapter.ChatOptions) (string, error)
	EmbedFunc func(inputs []string) ([][]float64, error)
	chats     int
	lastMsgs  []adapter.Message
	lastOpts  adapter.ChatOptions
}

func (f *fakeAI) Provider() string { return "fake" }

func (f *fakeAI) Chat(_ context.Context, msgs []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	f.mu.Lock()
	f.chats++
	f.lastMsgs, f.lastOpts = msgs, opts
	f.mu.Unlock()
	if f.ChatFunc != nil {
		s, err := f.ChatFunc(msgs, opts)
		return s, adapter.Usage{}, err
	}
	return "respuesta", adapter.Usage{PromptTokens: 10, CompletionTokens: 2}, nil
}

func (f *fakeAI) Embed(_ context.Context, inputs []string) ([][]float64, error) {
	if f.EmbedFunc != nil {
		return f.EmbedFunc(inputs)
	}
	out := make([][]float64, len(inputs))
	for i := range inputs {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

type fakeEmbeddingRepo struct {
	mu         sync.Mutex
	hits       []*model.SearchHit
	searchErr  error
	lastCount  int
	upsertErrs []error // consumed one per call; nil entries succeed
	upserts    int
	saved      []*model.DocumentEmbedding
	txs        []repository.Tx
}

func (f *fakeEmbeddingRepo) UpsertBatch(_ context.Context, tx repository.Tx, rows []*model.DocumentEmbedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.txs = append(f.txs, tx)
	if len(f.upsertErrs) > 0 {
		err := f.upsertErrs[0]
		f.upsertErrs = f.upsertErrs[1:]
		if err != nil {
			return err
		}
	}
	f.saved = append(f.saved, rows...)
	return nil
}

func (f *fakeEmbeddingRepo) VectorSearch(_ context.Context, _ repository.Tx, _ []float64, matchCount int) ([]*model.SearchHit, error) {
	f.lastCount = matchCount
	return f.hits, f.searchErr
}

type fakeDocRepo struct {
	docs  []*model.Document
	err   error
	pages int
}

func (f *fakeDocRepo) ListPage(_ context.Context, _ repository.Tx, offset, limit int) ([]*model.Document, error) {
	f.pages++
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.docs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.docs) {
		end = len(f.docs)
	}
	return f.docs[offset:end], nil
}

type memAnswerCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemAnswerCache() *memAnswerCache { return &memAnswerCache{data: map[string]string{}} }

func (c *memAnswerCache) Get(_ context.Context, q string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[q]
	return v, ok, nil
}

func (c *memAnswerCache) Set(_ context.Context, q, a string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[q] = a
	return nil
}

type fakeLocker struct {
	held bool
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	if l.held {
		return "", false, nil
	}
	l.held = true
	return "tok", true, nil
}

func (l *fakeLocker) Unlock(context.Context, string, string) error {
	l.held = false
	return nil
}

// fakeTxManager hands fn a marker Tx and reports commits and rollbacks.
type fakeTxManager struct {
	commits, rollbacks int
}

func (m *fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := fn(ctx, "tx"); err != nil {
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}
