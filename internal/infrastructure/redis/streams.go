package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taskgoapp/taskgo-sync/internal/docstore"
)

const (
	// DocWriteStream carries one message per remote document write,
	// at-least-once, fanned out to replication workers via a consumer
	// group.
	DocWriteStream = "docstore:writes"
)

// StreamProducer publishes document write events.
type StreamProducer struct {
	client *redis.Client
}

func NewStreamProducer(client *redis.Client) *StreamProducer {
	return &StreamProducer{client: client}
}

// PublishWrite implements docstore.EventPublisher.
func (p *StreamProducer) PublishWrite(ctx context.Context, ev docstore.WriteEvent) error {
	args := &redis.XAddArgs{
		Stream: DocWriteStream,
		Values: map[string]any{
			"collection": ev.Collection,
			"doc_id":     ev.DocID,
			"timestamp":  ev.At.UnixMilli(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish write event: %w", err)
	}
	return nil
}

// StreamConsumer reads document write events as part of a consumer
// group.
type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	// Create stream if it doesn't exist
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XStream, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			// No new messages
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	return streams, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	err := c.client.XAck(ctx, c.stream, c.group, messageID).Err()
	if err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Pending lists message ids delivered to the group but not yet acked
// after sitting idle for at least minIdleTime, across all consumers.
func (c *StreamConsumer) Pending(ctx context.Context, minIdleTime time.Duration) ([]string, error) {
	entries, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Idle:   minIdleTime,
		Start:  "-",
		End:    "+",
		Count:  c.batchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (c *StreamConsumer) Claim(ctx context.Context, minIdleTime time.Duration, messageIDs []string) ([]redis.XMessage, error) {
	messages, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdleTime,
		Messages: messageIDs,
	}).Result()

	if err != nil {
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}

	return messages, nil
}

// EventFromMessage decodes a write event from a stream message.
func EventFromMessage(msg redis.XMessage) (docstore.WriteEvent, error) {
	collection, _ := msg.Values["collection"].(string)
	docID, _ := msg.Values["doc_id"].(string)
	if collection == "" || docID == "" {
		return docstore.WriteEvent{}, fmt.Errorf("malformed write event %s", msg.ID)
	}

	ev := docstore.WriteEvent{Collection: collection, DocID: docID}
	if raw, ok := msg.Values["timestamp"].(string); ok {
		var millis int64
		if _, err := fmt.Sscan(raw, &millis); err == nil {
			ev.At = time.UnixMilli(millis)
		}
	}
	return ev, nil
}
