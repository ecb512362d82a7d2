package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const embeddingTable = "title_embeddings"

// PostgresWriter writes corpus embeddings into a pgvector-backed table in
// the host application's schema.
//
// Tables:
//   - <schema>.title_embeddings
type PostgresWriter struct {
	pool   *pgxpool.Pool
	schema string
	model  string
}

var _ Writer = (*PostgresWriter)(nil)

func NewPostgresWriter(pool *pgxpool.Pool, schema, model string) (*PostgresWriter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if strings.TrimSpace(schema) == "" {
		return nil, fmt.Errorf("schema is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &PostgresWriter{pool: pool, schema: schema, model: model}, nil
}

// EnsureSchema creates the embedding table for the given dimension if it
// does not exist yet.
func (w *PostgresWriter) EnsureSchema(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive")
	}
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			item_id    text NOT NULL,
			model      text NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (item_id, model)
		)
	`, w.schema, embeddingTable, dim)
	_, err := w.pool.Exec(ctx, q)
	return err
}

func (w *PostgresWriter) Upsert(ctx context.Context, id string, embedding []float32) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("id is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty")
	}

	q := fmt.Sprintf(`
		INSERT INTO %s.%s (item_id, model, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (item_id, model) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = now()
	`, w.schema, embeddingTable)

	_, err := w.pool.Exec(ctx, q, id, w.model, pgvector.NewVector(embedding))
	return err
}
