package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
	"github.com/taskgoapp/taskgo-sync/internal/infrastructure/observability"
)

// LoopConfig tunes the background sync loop.
type LoopConfig struct {
	// PollInterval is the sleep between full passes. Keep it smaller
	// than the scheduler's debounce delay so newly-due items are not
	// starved.
	PollInterval time.Duration
	// RetryBackoff is the delay before a transiently-failed entry
	// becomes due again.
	RetryBackoff time.Duration
	// PurgeAge is how long completed and failed entries linger before
	// housekeeping deletes them.
	PurgeAge time.Duration
	// BatchSize caps the entries claimed per pass.
	BatchSize int
}

// Loop polls the outbox for due entries and drives the executor. It is
// an explicit service owned by the process lifecycle: Start blocks
// until the context is cancelled, and RunOneCycle performs a single
// synchronous pass for external periodic triggers.
type Loop struct {
	repo    outbox.Repository
	applier Applier
	cfg     LoopConfig
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewLoop(repo outbox.Repository, applier Applier, cfg LoopConfig, logger zerolog.Logger, metrics *observability.Metrics) *Loop {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Loop{
		repo:    repo,
		applier: applier,
		cfg:     cfg,
		logger:  logger.With().Str("component", "sync-loop").Logger(),
		metrics: metrics,
		now:     time.Now,
	}
}

// Start runs poll passes until ctx is cancelled. A failed pass is
// logged and the loop keeps going; entries stay pending for the next
// pass.
func (l *Loop) Start(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	l.logger.Info().Dur("poll_interval", l.cfg.PollInterval).Msg("Sync loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("Sync loop stopped")
			return nil
		case <-ticker.C:
		}

		if err := l.RunOneCycle(ctx); err != nil {
			l.logger.Error().Err(err).Msg("Sync cycle error")
		}
	}
}

// RunOneCycle performs exactly one poll-dispatch-housekeep pass. It is
// safe to call concurrently with Start: claiming an entry transitions
// it to syncing, so the slower caller loses the race and skips it.
func (l *Loop) RunOneCycle(ctx context.Context) error {
	start := l.now()

	due, err := l.repo.Due(ctx, start, l.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("poll due entries: %w", err)
	}

	for _, e := range due {
		l.dispatch(ctx, e)
	}

	if purged, err := l.repo.PurgeFinished(ctx, start.Add(-l.cfg.PurgeAge)); err != nil {
		l.logger.Error().Err(err).Msg("Outbox purge failed")
	} else if purged > 0 {
		l.logger.Debug().Int("purged", purged).Msg("Outbox housekeeping")
	}

	if pending, err := l.repo.CountByStatus(ctx, outbox.StatusPending); err == nil {
		l.metrics.OutboxPending.Set(float64(pending))
	}
	l.metrics.SyncCycleDuration.Observe(l.now().Sub(start).Seconds())
	return nil
}

// ForceSync dispatches the pending entry for the key immediately,
// ignoring its due time. It reports whether an entry was found.
func (l *Loop) ForceSync(ctx context.Context, entityType entity.Type, entityID string) (bool, error) {
	e, err := l.repo.GetInFlight(ctx, entityType, entityID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrEntryNotFound) {
			return false, nil
		}
		return false, err
	}
	if e.Status != outbox.StatusPending {
		return false, nil
	}
	l.dispatch(ctx, e)
	return true, nil
}

func (l *Loop) dispatch(ctx context.Context, e *outbox.Entry) {
	log := l.logger.With().
		Str("entry_id", e.ID.String()).
		Str("entity_type", string(e.EntityType)).
		Str("entity_id", e.EntityID).
		Str("operation", string(e.Operation)).
		Logger()

	if err := l.repo.MarkSyncing(ctx, e.ID); err != nil {
		// Claimed by a concurrent cycle.
		log.Debug().Err(err).Msg("Skipping entry, not claimable")
		return
	}

	prevID := e.EntityID
	err := l.applier.Apply(ctx, e)

	switch {
	case err == nil:
		if e.EntityID != prevID {
			if idErr := l.repo.SetEntityID(ctx, e.ID, e.EntityID); idErr != nil {
				log.Error().Err(idErr).Msg("Failed to record allocated entity id")
			}
		}
		if mErr := l.repo.MarkCompleted(ctx, e.ID); mErr != nil {
			log.Error().Err(mErr).Msg("Failed to complete entry")
			return
		}
		l.metrics.SyncDispatches.WithLabelValues(string(e.EntityType), "success").Inc()
		log.Info().Msg("Entry synced")

	case domainErrors.Permanent(err):
		if mErr := l.repo.MarkFailed(ctx, e.ID, err.Error()); mErr != nil {
			log.Error().Err(mErr).Msg("Failed to fail entry")
		}
		l.metrics.SyncDispatches.WithLabelValues(string(e.EntityType), "failed").Inc()
		log.Error().Err(err).Msg("Entry failed permanently")

	default:
		if e.RetriesExhausted() {
			if mErr := l.repo.MarkFailed(ctx, e.ID, err.Error()); mErr != nil {
				log.Error().Err(mErr).Msg("Failed to fail entry")
			}
			l.metrics.SyncDispatches.WithLabelValues(string(e.EntityType), "failed").Inc()
			log.Error().Err(err).Int("retries", e.RetryCount).Msg("Entry failed after max retries")
			return
		}
		if mErr := l.repo.Reschedule(ctx, e.ID, l.now().Add(l.cfg.RetryBackoff)); mErr != nil {
			log.Error().Err(mErr).Msg("Failed to reschedule entry")
			return
		}
		l.metrics.SyncDispatches.WithLabelValues(string(e.EntityType), "retry").Inc()
		log.Warn().Err(err).Int("retry", e.RetryCount+1).Msg("Entry rescheduled")
	}
}
