package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"tempvoice/internal/core/domain"
	"tempvoice/pkg/batch"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is the message published for every lifecycle log entry.
type Event struct {
	Type       domain.LogKind  `json:"type"`
	InstanceID string          `json:"instance_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Entry      domain.LogEntry `json:"entry"`
}

// EventBus publishes lifecycle log entries to a redis channel so external
// consumers can archive or relay them. It implements ports.LogSink.
// Publishing is batched and pipelined; Record never blocks on redis.
type EventBus struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     *zap.SugaredLogger
	batcher    *batch.Batcher[Event]
	now        func() time.Time

	dropped atomic.Int64
}

// NewEventBus creates a new event bus
func NewEventBus(
	client *redis.Client,
	channel string,
	instanceID string,
	batchSize int,
	flushInterval time.Duration,
	logger *zap.SugaredLogger,
) *EventBus {
	eb := &EventBus{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		logger:     logger,
		now:        time.Now,
	}
	eb.batcher = batch.NewBatcher(batchSize, flushInterval, eb.publish, eb.onPublishError)
	return eb
}

// Record queues entry for publishing.
func (eb *EventBus) Record(ctx context.Context, entry domain.LogEntry) {
	event := Event{
		Type:       entry.Kind,
		InstanceID: eb.instanceID,
		Timestamp:  eb.now(),
		Entry:      entry,
	}
	if err := eb.batcher.Add(event); err != nil {
		eb.dropped.Add(1)
		eb.logger.Warnw("event bus closed, dropping entry", "kind", entry.Kind, "room_id", entry.RoomID)
	}
}

func (eb *EventBus) publish(ctx context.Context, events []Event) error {
	_, err := eb.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, event := range events {
			data, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			pipe.Publish(ctx, eb.channel, data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish %d events: %w", len(events), err)
	}

	eb.logger.Debugw("published events", "channel", eb.channel, "count", len(events))
	return nil
}

func (eb *EventBus) onPublishError(err error, events []Event) {
	eb.dropped.Add(int64(len(events)))
	eb.logger.Warnw("failed to publish lifecycle events",
		"error", err,
		"channel", eb.channel,
		"count", len(events),
	)
}

// Dropped returns the number of entries that could not be published.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}

// Close flushes pending events. The redis client is left open.
func (eb *EventBus) Close(ctx context.Context) error {
	return eb.batcher.Stop(ctx)
}
