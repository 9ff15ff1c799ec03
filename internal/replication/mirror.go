// Package replication keeps the per-owner private subcollections and
// the global public collections converged. One handler pair exists per
// replicated entity type, generic over the type's descriptor.
package replication

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/taskgoapp/taskgo-sync/internal/docstore"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/infrastructure/observability"
)

// TransactionManager runs fn atomically against the document store so
// concurrent deliveries for the same document serialize.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Mirror implements both trigger directions. Handlers are pure
// functions of the latest stored state, never of the event payload,
// which makes redelivery of the same event a no-op.
type Mirror struct {
	store   docstore.Store
	tx      TransactionManager
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewMirror(store docstore.Store, tx TransactionManager, logger zerolog.Logger, metrics *observability.Metrics) *Mirror {
	return &Mirror{
		store:   store,
		tx:      tx,
		logger:  logger.With().Str("component", "mirror").Logger(),
		metrics: metrics,
	}
}

// HandleWrite routes a document write event to the matching handler.
// Writes outside the replicated collections are ignored.
func (m *Mirror) HandleWrite(ctx context.Context, ev docstore.WriteEvent) error {
	if ownerID, sub, ok := docstore.SplitPrivateCollection(ev.Collection); ok {
		desc, replicated := entity.ReplicatedBySubcollection(sub)
		if !replicated {
			return nil
		}
		return m.privateToPublic(ctx, desc, ownerID, ev.DocID)
	}

	if desc, replicated := entity.ReplicatedByPublicCollection(ev.Collection); replicated {
		return m.publicToPrivate(ctx, desc, ev.DocID)
	}
	return nil
}

// privateToPublic mirrors the owner's copy into the public collection.
// The private subcollection is the source of truth in this direction:
// existing data overwrites the mirror unconditionally, and a deleted
// private copy deletes the mirror regardless of timestamps.
func (m *Mirror) privateToPublic(ctx context.Context, desc entity.Descriptor, ownerID, docID string) error {
	direction := "private_to_public"
	private := docstore.PrivateCollection(ownerID, desc.PrivateSubcollection)

	err := m.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		data, err := m.store.Get(txCtx, private, docID)
		if errors.Is(err, domainErrors.ErrDocumentNotFound) {
			if err := m.store.Delete(txCtx, desc.PublicCollection, docID); err != nil {
				return fmt.Errorf("delete public mirror: %w", err)
			}
			m.metrics.ReplicationEvents.WithLabelValues(direction, "deleted").Inc()
			m.logger.Info().
				Str("entity_type", string(desc.Type)).
				Str("doc_id", docID).
				Str("owner_id", ownerID).
				Msg("Public mirror deleted")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read private copy: %w", err)
		}

		if err := m.store.Set(txCtx, desc.PublicCollection, docID, data, true); err != nil {
			return fmt.Errorf("upsert public mirror: %w", err)
		}
		m.metrics.ReplicationEvents.WithLabelValues(direction, "mirrored").Inc()
		return nil
	})
	if err != nil {
		m.metrics.ReplicationEvents.WithLabelValues(direction, "error").Inc()
	}
	return err
}

// publicToPrivate mirrors the public copy back into the owner's
// subcollection, but only when the public copy is strictly newer.
// Ties and missing timestamps never overwrite, favoring stability
// over churn.
func (m *Mirror) publicToPrivate(ctx context.Context, desc entity.Descriptor, docID string) error {
	direction := "public_to_private"

	err := m.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		pub, err := m.store.Get(txCtx, desc.PublicCollection, docID)
		if errors.Is(err, domainErrors.ErrDocumentNotFound) {
			// Public deletions do not propagate back; the private copy
			// is the source of truth for deletes.
			return nil
		}
		if err != nil {
			return fmt.Errorf("read public copy: %w", err)
		}

		ownerID, _ := pub[desc.OwnerField].(string)
		if ownerID == "" {
			return fmt.Errorf("%w: %s.%s on %s/%s", domainErrors.ErrOwnerUnresolved,
				desc.Type, desc.OwnerField, desc.PublicCollection, docID)
		}

		private := docstore.PrivateCollection(ownerID, desc.PrivateSubcollection)
		priv, err := m.store.Get(txCtx, private, docID)
		if err != nil && !errors.Is(err, domainErrors.ErrDocumentNotFound) {
			return fmt.Errorf("read private copy: %w", err)
		}

		if priv != nil && docstore.UpdatedAtMillis(pub) <= docstore.UpdatedAtMillis(priv) {
			m.metrics.ReplicationEvents.WithLabelValues(direction, "skipped").Inc()
			return nil
		}

		if err := m.store.Set(txCtx, private, docID, pub, true); err != nil {
			return fmt.Errorf("upsert private copy: %w", err)
		}
		m.metrics.ReplicationEvents.WithLabelValues(direction, "mirrored").Inc()
		return nil
	})
	if err != nil {
		m.metrics.ReplicationEvents.WithLabelValues(direction, "error").Inc()
	}
	return err
}
