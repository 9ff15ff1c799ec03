package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
)

type Repository interface {
	// Upsert schedules an entry, debouncing by (EntityType, EntityID):
	// if an entry for the same key is pending or syncing, its payload,
	// operation and DueAt are replaced and it returns to pending,
	// otherwise a new row is inserted.
	Upsert(ctx context.Context, e *Entry) error

	// Due returns pending entries with DueAt <= now, oldest due first.
	Due(ctx context.Context, now time.Time, limit int) ([]*Entry, error)

	// GetInFlight returns the pending or syncing entry for the key, or
	// domainErrors.ErrEntryNotFound.
	GetInFlight(ctx context.Context, entityType entity.Type, entityID string) (*Entry, error)

	// MarkSyncing claims a pending entry for dispatch.
	MarkSyncing(ctx context.Context, id uuid.UUID) error

	// MarkCompleted finishes an entry. It only applies while the entry
	// is still syncing; a concurrent reschedule wins otherwise.
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// Reschedule returns a syncing entry to pending with an incremented
	// retry count and a new due time.
	Reschedule(ctx context.Context, id uuid.UUID, dueAt time.Time) error

	// MarkFailed terminally fails an entry.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// SetEntityID records a document id allocated at dispatch time so
	// replays of the same entry stay idempotent.
	SetEntityID(ctx context.Context, id uuid.UUID, entityID string) error

	// CountByStatus returns the number of entries in the given status.
	CountByStatus(ctx context.Context, status Status) (int, error)

	// PurgeFinished deletes completed and failed entries last touched
	// before the cutoff, keeping the table bounded.
	PurgeFinished(ctx context.Context, before time.Time) (int, error)
}
