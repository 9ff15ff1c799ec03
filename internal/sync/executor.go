package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/taskgoapp/taskgo-sync/internal/docstore"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
)

// Executor dispatches due outbox entries to the remote document store.
// Remote calls run through a circuit breaker; any remote or breaker
// error is transient and goes back to the loop for retry, while decode
// and policy violations are permanent.
type Executor struct {
	store   docstore.Store
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
	now     func() time.Time
}

func NewExecutor(store docstore.Store, logger zerolog.Logger) *Executor {
	return &Executor{
		store: store,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "docstore",
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 10 && failureRatio >= 0.6
			},
		}),
		logger: logger.With().Str("component", "executor").Logger(),
		now:    time.Now,
	}
}

// Apply performs the entry's remote mutation. On create with an empty
// entity id it allocates a document id and writes it back into the
// entry so the caller can persist it before the write is confirmed.
func (x *Executor) Apply(ctx context.Context, e *outbox.Entry) error {
	desc, err := entity.DescriptorFor(e.EntityType)
	if err != nil {
		return fmt.Errorf("%w: %q", domainErrors.ErrUnknownEntityType, e.EntityType)
	}

	switch e.Operation {
	case outbox.OpCreate, outbox.OpUpdate:
		return x.applyUpsert(ctx, desc, e)
	case outbox.OpDelete:
		return x.applyDelete(ctx, desc, e)
	default:
		return fmt.Errorf("%w: operation %q", domainErrors.ErrUnsupportedOperation, e.Operation)
	}
}

func (x *Executor) applyUpsert(ctx context.Context, desc entity.Descriptor, e *outbox.Entry) error {
	payload, err := entity.DecodePayload(e.EntityType, e.Payload)
	if err != nil {
		return err
	}

	docID := e.EntityID
	if docID == "" {
		docID = payload.DocID()
	}
	if docID == "" {
		if e.Operation != outbox.OpCreate {
			return fmt.Errorf("%w: update without entity id", domainErrors.ErrMalformedPayload)
		}
		docID = uuid.NewString()
	}

	doc, err := payload.Doc()
	if err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrMalformedPayload, err)
	}
	if desc.Type != entity.TypeSettings {
		doc["id"] = docID
	}

	if err := x.write(ctx, func(c context.Context) error {
		return x.store.Set(c, desc.PublicCollection, docID, doc, desc.MergeWrite)
	}); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", desc.PublicCollection, docID, err)
	}

	e.EntityID = docID
	return nil
}

func (x *Executor) applyDelete(ctx context.Context, desc entity.Descriptor, e *outbox.Entry) error {
	if e.EntityID == "" {
		return fmt.Errorf("%w: delete without entity id", domainErrors.ErrMalformedPayload)
	}

	switch desc.Delete {
	case entity.DeleteHard:
		if err := x.write(ctx, func(c context.Context) error {
			return x.store.Delete(c, desc.PublicCollection, e.EntityID)
		}); err != nil {
			return fmt.Errorf("delete %s/%s: %w", desc.PublicCollection, e.EntityID, err)
		}
		return nil
	case entity.DeleteSoft:
		// Products are retired, not removed.
		tombstone := map[string]any{
			"active":    false,
			"updatedAt": x.now().UnixMilli(),
		}
		if err := x.write(ctx, func(c context.Context) error {
			return x.store.Set(c, desc.PublicCollection, e.EntityID, tombstone, true)
		}); err != nil {
			return fmt.Errorf("deactivate %s/%s: %w", desc.PublicCollection, e.EntityID, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: delete %s", domainErrors.ErrUnsupportedOperation, e.EntityType)
	}
}

func (x *Executor) write(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := x.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
