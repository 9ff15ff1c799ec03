package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
)

// EntityCache is the local copy of remote entities. Reads serve the UI
// instantly; the cache is hydrated by the initial bulk sync and kept
// warm by local writes.
type EntityCache struct {
	db *sql.DB
}

func NewEntityCache(db *sql.DB) *EntityCache {
	return &EntityCache{db: db}
}

func (c *EntityCache) Put(ctx context.Context, entityType entity.Type, entityID string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal cached entity: %w", err)
	}
	now := time.Now().UnixMilli()
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO entity_cache (entity_type, entity_id, data, updated_at_ms, cached_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, entity_id) DO UPDATE SET
		     data = excluded.data, updated_at_ms = excluded.updated_at_ms, cached_at = excluded.cached_at`,
		string(entityType), entityID, raw, updatedAtOf(data), now,
	)
	if err != nil {
		return fmt.Errorf("put cached entity %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

func (c *EntityCache) Get(ctx context.Context, entityType entity.Type, entityID string) (map[string]any, error) {
	var raw []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM entity_cache WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cache %s/%s", domainErrors.ErrDocumentNotFound, entityType, entityID)
	}
	if err != nil {
		return nil, fmt.Errorf("get cached entity %s/%s: %w", entityType, entityID, err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal cached entity: %w", err)
	}
	return data, nil
}

func (c *EntityCache) List(ctx context.Context, entityType entity.Type) ([]map[string]any, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM entity_cache WHERE entity_type = ? ORDER BY entity_id`,
		string(entityType),
	)
	if err != nil {
		return nil, fmt.Errorf("list cached %s: %w", entityType, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan cached entity: %w", err)
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("unmarshal cached entity: %w", err)
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

func (c *EntityCache) Delete(ctx context.Context, entityType entity.Type, entityID string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM entity_cache WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID,
	)
	if err != nil {
		return fmt.Errorf("delete cached entity %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

func updatedAtOf(data map[string]any) int64 {
	switch v := data["updatedAt"].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}
