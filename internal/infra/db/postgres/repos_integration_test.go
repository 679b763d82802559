//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

func unitVector(hot int) []float64 {
	v := make([]float64, 1536)
	v[hot] = 1
	return v
}

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	ctx := context.Background()
	_, err := testPool.Exec(ctx, `INSERT INTO usuarios (id, nombre, nombre_usuario, telefono_movil, rol, password_hash)
VALUES ('u1','Ana','ana','600111222','admin','$2a$10$hash'), ('u2', NULL, 'luis', NULL, NULL, NULL)`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := NewUserRepo(testPool, "usuarios")

	u, err := repo.FindByUsername(ctx, nil, "ana")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if u.ID != "u1" || u.Role != "admin" || u.PasswordHash == "" {
		t.Errorf("unexpected user %+v", u)
	}

	u, err = repo.FindByPhone(ctx, nil, "600111222")
	if err != nil || u.Username != "ana" {
		t.Fatalf("FindByPhone: %+v, %v", u, err)
	}

	u, err = repo.FindByID(ctx, nil, "u2")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if u.Role != "user" || u.Name != "" || u.PasswordHash != "" {
		t.Errorf("nullable columns should come back as defaults, got %+v", u)
	}

	if _, err := repo.FindByID(ctx, nil, "missing"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentRepo_Paging_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := testPool.Exec(ctx, `INSERT INTO documentos (id, contenido) VALUES ($1, $2)`, id, "texto "+id); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	repo := NewDocumentRepo(testPool, "documentos")

	page, err := repo.ListPage(ctx, nil, 0, 2)
	if err != nil || len(page) != 2 || page[0].ID != "a" {
		t.Fatalf("first page: %+v, %v", page, err)
	}
	page, err = repo.ListPage(ctx, nil, 2, 2)
	if err != nil || len(page) != 1 || page[0].Content != "texto c" {
		t.Fatalf("second page: %+v, %v", page, err)
	}
	page, err = repo.ListPage(ctx, nil, 4, 2)
	if err != nil || len(page) != 0 {
		t.Fatalf("past the end: %+v, %v", page, err)
	}
}

func TestEmbeddingRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	ctx := context.Background()
	repo := NewEmbeddingRepo(testPool, "documentos_embeddings")
	now := time.Now().UTC()

	rows := []*model.DocumentEmbedding{
		{DocumentID: "d1", Content: "cuotas", Embedding: unitVector(0), VectorizedAt: now},
		{DocumentID: "d2", Content: "ascensor", Embedding: unitVector(1), VectorizedAt: now},
	}
	if err := NewTxManager(testPool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return repo.UpsertBatch(ctx, tx, rows)
	}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	// idempotent re-index
	rows[0].Content = "cuotas actualizadas"
	if err := repo.UpsertBatch(ctx, nil, rows[:1]); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	hits, err := repo.VectorSearch(ctx, nil, unitVector(0), 2)
	if err != nil {
		t.Fatalf("VectorSearch: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].DocumentID != "d1" || hits[0].Content != "cuotas actualizadas" {
		t.Errorf("nearest hit should be the updated d1, got %+v", hits[0])
	}
	if len(hits[0].Embedding) != 1536 || hits[0].Embedding[0] != 1 {
		t.Errorf("embedding not decoded: len=%d", len(hits[0].Embedding))
	}
}
