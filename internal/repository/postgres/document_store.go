package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskgoapp/taskgo-sync/internal/docstore"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
)

// DocumentStore implements docstore.Store on a single JSONB-keyed
// documents table. Merge writes use the JSONB concatenation operator,
// so a merge set only overlays the provided top-level fields.
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, s.pool)
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	var raw []byte
	err := s.db(ctx).QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND doc_id = $2`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domainErrors.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal document %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *DocumentStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", collection, id, err)
	}

	assign := `data = EXCLUDED.data`
	if merge {
		assign = `data = documents.data || EXCLUDED.data`
	}
	_, err = s.db(ctx).Exec(ctx,
		`INSERT INTO documents (collection, doc_id, data, written_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection, doc_id) DO UPDATE SET `+assign+`, written_at = EXCLUDED.written_at`,
		collection, id, raw, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("set document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db(ctx).Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND doc_id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DocumentStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	rows, err := s.db(ctx).Query(ctx,
		`SELECT doc_id, data FROM documents WHERE collection = $1 ORDER BY doc_id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", collection, err)
	}
	defer rows.Close()
	return scanDocuments(rows, collection)
}

func (s *DocumentStore) ListByField(ctx context.Context, collection, field, value string) ([]docstore.Document, error) {
	rows, err := s.db(ctx).Query(ctx,
		`SELECT doc_id, data FROM documents WHERE collection = $1 AND data->>$2 = $3 ORDER BY doc_id`,
		collection, field, value,
	)
	if err != nil {
		return nil, fmt.Errorf("list collection %s by %s: %w", collection, field, err)
	}
	defer rows.Close()
	return scanDocuments(rows, collection)
}

func scanDocuments(rows pgx.Rows, collection string) ([]docstore.Document, error) {
	var docs []docstore.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("unmarshal document %s/%s: %w", collection, id, err)
		}
		docs = append(docs, docstore.Document{Collection: collection, ID: id, Data: data})
	}
	return docs, rows.Err()
}
