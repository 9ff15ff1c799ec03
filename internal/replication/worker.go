package replication

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/taskgoapp/taskgo-sync/internal/infrastructure/observability"
	infraRedis "github.com/taskgoapp/taskgo-sync/internal/infrastructure/redis"
)

const (
	// reclaimIdle is how long a delivered-but-unacked message may sit
	// before another consumer steals it. Covers a worker that crashed
	// mid-batch.
	reclaimIdle = time.Minute

	reclaimEvery = 30 * time.Second
)

// Worker drains the document write stream and drives the mirror.
// Delivery is at least once; the mirror absorbs duplicates because it
// acts on stored state. A handler error is logged and the event is
// acked anyway; there is no dead-letter path, the next write to
// either side repairs a missed replication.
type Worker struct {
	consumer *infraRedis.StreamConsumer
	mirror   *Mirror
	logger   zerolog.Logger
	metrics  *observability.Metrics

	lastReclaim time.Time
}

func NewWorker(consumer *infraRedis.StreamConsumer, mirror *Mirror, logger zerolog.Logger, metrics *observability.Metrics) *Worker {
	return &Worker{
		consumer: consumer,
		mirror:   mirror,
		logger:   logger.With().Str("component", "replication-worker").Logger(),
		metrics:  metrics,
	}
}

// Run consumes events until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if time.Since(w.lastReclaim) >= reclaimEvery {
			w.reclaim(ctx)
			w.lastReclaim = time.Now()
		}

		streams, err := w.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				w.handle(ctx, msg)
			}
		}
	}
}

// reclaim steals messages another consumer took but never acked, so a
// crashed worker's in-flight batch still gets replicated.
func (w *Worker) reclaim(ctx context.Context) {
	ids, err := w.consumer.Pending(ctx, reclaimIdle)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list pending messages")
		return
	}
	if len(ids) == 0 {
		return
	}

	msgs, err := w.consumer.Claim(ctx, reclaimIdle, ids)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to claim stale messages")
		return
	}

	w.logger.Info().Int("count", len(msgs)).Msg("Reclaimed stale stream messages")
	for _, msg := range msgs {
		w.handle(ctx, msg)
	}
}

func (w *Worker) handle(ctx context.Context, msg redis.XMessage) {
	ev, err := infraRedis.EventFromMessage(msg)
	if err != nil {
		w.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping malformed write event")
		w.ack(ctx, msg.ID)
		return
	}

	if err := w.mirror.HandleWrite(ctx, ev); err != nil {
		// Logged and dropped; self-heals on the next write.
		w.logger.Error().Err(err).
			Str("collection", ev.Collection).
			Str("doc_id", ev.DocID).
			Msg("Replication handler error")
		w.metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.DocWriteStream, "error").Inc()
	} else {
		w.metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.DocWriteStream, "success").Inc()
	}
	w.ack(ctx, msg.ID)
}

func (w *Worker) ack(ctx context.Context, messageID string) {
	if err := w.consumer.Ack(ctx, messageID); err != nil {
		w.logger.Error().Err(err).Str("message_id", messageID).Msg("Failed to ack message")
	}
}
