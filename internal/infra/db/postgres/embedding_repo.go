package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/metrics"
)

var _ repository.EmbeddingRepository = (*EmbeddingRepo)(nil)

type EmbeddingRepo struct {
	pool  *pgxpool.Pool
	table string
}

func NewEmbeddingRepo(pool *pgxpool.Pool, tableName string) *EmbeddingRepo {
	if tableName == "" {
		tableName = "documentos_embeddings"
	}
	return &EmbeddingRepo{pool: pool, table: table(tableName)}
}

// UpsertBatch writes all rows in one round trip; a re-index overwrites by document_id.
func (r *EmbeddingRepo) UpsertBatch(ctx context.Context, tx repository.Tx, rows []*model.DocumentEmbedding) error {
	if len(rows) == 0 {
		return nil
	}
	defer metrics.ObserveQuery("embeddings_upsert", time.Now())
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`
INSERT INTO %s (document_id, contenido, embedding_vector, vectorizado_en)
VALUES ($1, $2, $3::vector, $4)
ON CONFLICT (document_id) DO UPDATE SET
  contenido=EXCLUDED.contenido, embedding_vector=EXCLUDED.embedding_vector, vectorizado_en=EXCLUDED.vectorizado_en;`, r.table)

	b := &pgx.Batch{}
	for _, e := range rows {
		b.Queue(q, e.DocumentID, e.Content, encodeVector(e.Embedding), e.VectorizedAt)
	}
	br := ex.SendBatch(ctx, b)
	defer br.Close()
	for i := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert embedding %s: %w", rows[i].DocumentID, err)
		}
	}
	return nil
}

// VectorSearch calls the vector_search SQL function installed by the migrations.
func (r *EmbeddingRepo) VectorSearch(ctx context.Context, tx repository.Tx, query []float64, matchCount int) ([]*model.SearchHit, error) {
	defer metrics.ObserveQuery("vector_search", time.Now())
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx,
		`SELECT document_id::text, COALESCE(contenido,''), COALESCE(embedding_vector::text,'') FROM vector_search($1::vector, $2);`,
		encodeVector(query), matchCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SearchHit
	for rows.Next() {
		var (
			h   model.SearchHit
			raw string
		)
		if err := rows.Scan(&h.DocumentID, &h.Content, &raw); err != nil {
			return nil, err
		}
		if h.Embedding, err = decodeVector(raw); err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", h.DocumentID, err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
