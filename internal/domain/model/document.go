package model

import (
	"strings"
	"time"
)

// EmbeddingDimensions is the width of the embedding_vector column.
const EmbeddingDimensions = 1536

// Document is a source row to be embedded.
type Document struct {
	ID      string
	Title   string
	Content string
}

// Valid reports whether the document carries the columns the indexer needs.
func (d Document) Valid() bool {
	return strings.TrimSpace(d.ID) != "" && strings.TrimSpace(d.Content) != ""
}

// DocumentEmbedding is a row of the embeddings table.
type DocumentEmbedding struct {
	DocumentID   string    `json:"document_id"`
	Content      string    `json:"contenido"`
	Embedding    []float64 `json:"embedding_vector"`
	VectorizedAt time.Time `json:"vectorizado_en"`
}

// SearchHit is a candidate returned by the vector search.
type SearchHit struct {
	DocumentID string
	Content    string
	Embedding  []float64
}

// ScoredHit is a hit ranked against the question embedding.
type ScoredHit struct {
	Score   float64
	Content string
}
