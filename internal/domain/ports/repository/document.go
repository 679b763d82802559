package repository

import (
	"context"

	"fincas-assistant/internal/domain/model"
)

// -----------------------------
// Documents and embeddings
// -----------------------------

type DocumentRepository interface {
	// ListPage returns up to limit documents ordered by id, starting at offset.
	ListPage(ctx context.Context, tx Tx, offset, limit int) ([]*model.Document, error)
}

type EmbeddingRepository interface {
	UpsertBatch(ctx context.Context, tx Tx, rows []*model.DocumentEmbedding) error
	// VectorSearch returns up to matchCount nearest neighbours of query.
	VectorSearch(ctx context.Context, tx Tx, query []float64, matchCount int) ([]*model.SearchHit, error)
}
