// Package local is the optimistic write path: mutations land in the
// on-device cache first and are scheduled for remote push second, so
// reads never wait on the network.
package local

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
	syncengine "github.com/taskgoapp/taskgo-sync/internal/sync"
)

// Scheduler is the slice of the sync engine the write path needs.
type Scheduler interface {
	Schedule(ctx context.Context, entityType entity.Type, entityID string, op outbox.Operation, payload any) error
}

// Repository serves reads from the local cache and funnels writes
// through cache-then-schedule.
type Repository struct {
	cache     syncengine.EntityCache
	scheduler Scheduler
	logger    zerolog.Logger
}

func NewRepository(cache syncengine.EntityCache, scheduler Scheduler, logger zerolog.Logger) *Repository {
	return &Repository{
		cache:     cache,
		scheduler: scheduler,
		logger:    logger.With().Str("component", "local-repository").Logger(),
	}
}

// Save stores the document locally and schedules its remote upsert,
// returning the document id. A payload with no id is a create: the id
// is allocated here so the entity is readable from the cache
// immediately, before the outbox entry is ever dispatched.
func (r *Repository) Save(ctx context.Context, p entity.Payload) (string, error) {
	doc, err := p.Doc()
	if err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}

	id := p.DocID()
	op := outbox.OpUpdate
	if id == "" {
		id = uuid.NewString()
		doc["id"] = id
		op = outbox.OpCreate
	}

	if err := r.cache.Put(ctx, p.EntityType(), id, doc); err != nil {
		return "", fmt.Errorf("cache write: %w", err)
	}

	if err := r.scheduler.Schedule(ctx, p.EntityType(), id, op, doc); err != nil {
		return "", fmt.Errorf("schedule sync: %w", err)
	}

	r.logger.Debug().
		Str("entity_type", string(p.EntityType())).
		Str("entity_id", id).
		Msg("Local write scheduled")
	return id, nil
}

// Delete removes the local copy and schedules the remote delete. The
// type's delete policy is enforced remotely at dispatch.
func (r *Repository) Delete(ctx context.Context, t entity.Type, id string) error {
	if err := r.cache.Delete(ctx, t, id); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	if err := r.scheduler.Schedule(ctx, t, id, outbox.OpDelete, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("schedule delete: %w", err)
	}
	return nil
}

// Get returns the cached document.
func (r *Repository) Get(ctx context.Context, t entity.Type, id string) (map[string]any, error) {
	return r.cache.Get(ctx, t, id)
}

// List returns every cached document of the type.
func (r *Repository) List(ctx context.Context, t entity.Type) ([]map[string]any, error) {
	return r.cache.List(ctx, t)
}
