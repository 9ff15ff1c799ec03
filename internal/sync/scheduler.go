package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
)

// Scheduler enqueues deferred remote writes. Scheduling is a pure
// local upsert: it always succeeds without touching the network, so
// every mutation path can call it inline.
type Scheduler struct {
	repo     outbox.Repository
	debounce time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewScheduler(repo outbox.Repository, debounce time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:     repo,
		debounce: debounce,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
	}
}

// Schedule records the intent to mirror a local mutation to the remote
// store after the debounce delay. Scheduling again for the same
// (entityType, entityID) before dispatch replaces the payload and
// pushes the due time forward, so the remote store only ever sees the
// last local state.
func (s *Scheduler) Schedule(ctx context.Context, entityType entity.Type, entityID string, op outbox.Operation, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}

	dueAt := s.now().Add(s.debounce)
	e := outbox.NewEntry(entityType, entityID, op, raw, dueAt)
	if err := s.repo.Upsert(ctx, e); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}

	s.logger.Debug().
		Str("entity_type", string(entityType)).
		Str("entity_id", entityID).
		Str("operation", string(op)).
		Time("due_at", dueAt).
		Msg("Sync scheduled")
	return nil
}

// PendingCount reports how many entries await dispatch, for the
// pending-sync indicator.
func (s *Scheduler) PendingCount(ctx context.Context) (int, error) {
	return s.repo.CountByStatus(ctx, outbox.StatusPending)
}
