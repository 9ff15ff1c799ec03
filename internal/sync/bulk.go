package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"

	"github.com/rs/zerolog"
	"github.com/taskgoapp/taskgo-sync/internal/docstore"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/infrastructure/observability"
	"golang.org/x/sync/errgroup"
)

// BulkReport is the per-type outcome of an initial bulk sync.
type BulkReport struct {
	mu     stdsync.Mutex
	Counts map[entity.Type]int
	Errors map[entity.Type]error
}

func newBulkReport() *BulkReport {
	return &BulkReport{
		Counts: make(map[entity.Type]int),
		Errors: make(map[entity.Type]error),
	}
}

func (r *BulkReport) record(t entity.Type, n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts[t] = n
	if err != nil {
		r.Errors[t] = err
	}
}

// AllOK reports whether every sub-fetch succeeded.
func (r *BulkReport) AllOK() bool {
	return len(r.Errors) == 0
}

// BulkSyncer hydrates the local cache from the remote store on a fresh
// authenticated session. It is a one-shot cold-start operation: steady
// state is maintained by the outbox and the replication pair.
type BulkSyncer struct {
	store   docstore.Store
	cache   EntityCache
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewBulkSyncer(store docstore.Store, cache EntityCache, logger zerolog.Logger, metrics *observability.Metrics) *BulkSyncer {
	return &BulkSyncer{
		store:   store,
		cache:   cache,
		logger:  logger.With().Str("component", "bulk-sync").Logger(),
		metrics: metrics,
	}
}

// SyncAll fetches the user's profile, products, orders, addresses and
// cards concurrently and caches them. Sub-fetches are independent: one
// failing does not cancel the others, and the report carries each
// outcome.
func (b *BulkSyncer) SyncAll(ctx context.Context, userID string) *BulkReport {
	report := newBulkReport()

	g := new(errgroup.Group)
	g.Go(func() error { b.syncProfile(ctx, userID, report); return nil })
	g.Go(func() error {
		b.syncCollection(ctx, entity.TypeProduct, docstore.PrivateCollection(userID, "products"), report)
		return nil
	})
	g.Go(func() error {
		b.syncCollection(ctx, entity.TypeOrder, docstore.PrivateCollection(userID, "orders"), report)
		return nil
	})
	g.Go(func() error { b.syncOwned(ctx, entity.TypeAddress, "addresses", userID, report); return nil })
	g.Go(func() error { b.syncOwned(ctx, entity.TypeCard, "cards", userID, report); return nil })
	g.Wait()

	for t, err := range report.Errors {
		b.metrics.BulkSyncResults.WithLabelValues(string(t), "error").Inc()
		b.logger.Error().Err(err).Str("entity_type", string(t)).Msg("Bulk sync sub-fetch failed")
	}
	for t, n := range report.Counts {
		if _, failed := report.Errors[t]; failed {
			continue
		}
		b.metrics.BulkSyncResults.WithLabelValues(string(t), "success").Inc()
		b.logger.Info().Str("entity_type", string(t)).Int("count", n).Msg("Bulk sync sub-fetch done")
	}
	return report
}

func (b *BulkSyncer) syncProfile(ctx context.Context, userID string, report *BulkReport) {
	doc, err := b.store.Get(ctx, "users", userID)
	if errors.Is(err, domainErrors.ErrDocumentNotFound) {
		// Fresh account, nothing to hydrate yet.
		report.record(entity.TypeUserProfile, 0, nil)
		return
	}
	if err != nil {
		report.record(entity.TypeUserProfile, 0, fmt.Errorf("fetch profile: %w", err))
		return
	}
	if err := b.cache.Put(ctx, entity.TypeUserProfile, userID, doc); err != nil {
		report.record(entity.TypeUserProfile, 0, fmt.Errorf("cache profile: %w", err))
		return
	}
	report.record(entity.TypeUserProfile, 1, nil)
}

func (b *BulkSyncer) syncCollection(ctx context.Context, t entity.Type, collection string, report *BulkReport) {
	docs, err := b.store.List(ctx, collection)
	if err != nil {
		report.record(t, 0, fmt.Errorf("fetch %s: %w", collection, err))
		return
	}
	report.record(t, len(docs), b.cacheAll(ctx, t, docs))
}

func (b *BulkSyncer) syncOwned(ctx context.Context, t entity.Type, collection, userID string, report *BulkReport) {
	docs, err := b.store.ListByField(ctx, collection, "userId", userID)
	if err != nil {
		report.record(t, 0, fmt.Errorf("fetch %s: %w", collection, err))
		return
	}
	report.record(t, len(docs), b.cacheAll(ctx, t, docs))
}

func (b *BulkSyncer) cacheAll(ctx context.Context, t entity.Type, docs []docstore.Document) error {
	for _, doc := range docs {
		if err := b.cache.Put(ctx, t, doc.ID, doc.Data); err != nil {
			return fmt.Errorf("cache %s/%s: %w", t, doc.ID, err)
		}
	}
	return nil
}
