// Package sync is the client-side engine: the scheduler that defers
// local mutations into the outbox, the loop that drains it, the
// executor that applies entries to the remote store, and the initial
// bulk hydration of the local cache.
package sync

import (
	"context"

	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
)

// Applier applies one outbox entry to the remote store. A nil error
// means the remote copy converged to the entry's payload; errors are
// classified permanent or transient by domainErrors.Permanent.
type Applier interface {
	Apply(ctx context.Context, e *outbox.Entry) error
}

// EntityCache is the local read copy the bulk sync hydrates and local
// repositories write through.
type EntityCache interface {
	Put(ctx context.Context, entityType entity.Type, entityID string, data map[string]any) error
	Get(ctx context.Context, entityType entity.Type, entityID string) (map[string]any, error)
	List(ctx context.Context, entityType entity.Type) ([]map[string]any, error)
	Delete(ctx context.Context, entityType entity.Type, entityID string) error
}
