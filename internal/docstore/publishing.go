package docstore

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Publishing wraps a Store and emits a WriteEvent after every
// successful Set or Delete. The replicator's own writes go through the
// same wrapper, so cascaded triggers fire for both halves of the
// replica pair.
//
// Publish failures do not fail the write: the write is already
// durable, and a lost event is repaired by the next write to either
// side, same as a dropped trigger delivery.
type Publishing struct {
	Store
	publisher EventPublisher
	logger    zerolog.Logger
}

func NewPublishing(store Store, publisher EventPublisher, logger zerolog.Logger) *Publishing {
	return &Publishing{
		Store:     store,
		publisher: publisher,
		logger:    logger.With().Str("component", "docstore").Logger(),
	}
}

func (p *Publishing) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	if err := p.Store.Set(ctx, collection, id, data, merge); err != nil {
		return err
	}
	p.publish(ctx, collection, id)
	return nil
}

func (p *Publishing) Delete(ctx context.Context, collection, id string) error {
	if err := p.Store.Delete(ctx, collection, id); err != nil {
		return err
	}
	p.publish(ctx, collection, id)
	return nil
}

func (p *Publishing) publish(ctx context.Context, collection, id string) {
	ev := WriteEvent{Collection: collection, DocID: id, At: time.Now()}
	if err := p.publisher.PublishWrite(ctx, ev); err != nil {
		p.logger.Error().Err(err).
			Str("collection", collection).
			Str("doc_id", id).
			Msg("Failed to publish write event")
	}
}
