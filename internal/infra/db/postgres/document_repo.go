package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"fincas-assistant/internal/domain/model"
	"fincas-assistant/internal/domain/ports/repository"
	"fincas-assistant/internal/infra/metrics"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

type DocumentRepo struct {
	pool  *pgxpool.Pool
	table string
}

func NewDocumentRepo(pool *pgxpool.Pool, tableName string) *DocumentRepo {
	if tableName == "" {
		tableName = "documentos"
	}
	return &DocumentRepo{pool: pool, table: table(tableName)}
}

func (r *DocumentRepo) ListPage(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Document, error) {
	defer metrics.ObserveQuery("documents_page", time.Now())
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
SELECT id::text, COALESCE(titulo,''), COALESCE(contenido,'')
  FROM %s ORDER BY id LIMIT $1 OFFSET $2;`, r.table)
	rows, err := ex.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
