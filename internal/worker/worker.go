package worker

import (
	"context"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"chronoloom/internal/reconciler"
	"chronoloom/internal/service"
	"chronoloom/pkg/logger"
)

// MessageReader is the part of kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Resyncer reconciles the stored reminders on demand.
type Resyncer interface {
	Resync(ctx context.Context, trigger service.Trigger) (reconciler.Result, error)
}

// NewReader returns a consumer-group reader for push messages.
// Scale by running more replicas; the group shares partitions.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Consumer runs a reconcile pass for every push message received. The
// message body is not interpreted.
type Consumer struct {
	reader    MessageReader
	resyncer  Resyncer
	processed atomic.Int64
}

func NewConsumer(reader MessageReader, resyncer Resyncer) *Consumer {
	return &Consumer{reader: reader, resyncer: resyncer}
}

// Processed reports how many messages were handled successfully.
func (c *Consumer) Processed() int64 {
	return c.processed.Load()
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	logger.Info(ctx, "Push consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "Push consumer fetch failed", "error", err)
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			logger.Error(ctx, "Push message handling failed", "error", err, "offset", msg.Offset)
			// Commit anyway to avoid poison pill blocking the partition
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "Push consumer commit failed", "error", err)
		}
		c.processed.Add(1)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	ctx = logger.With(ctx, "partition", msg.Partition, "offset", msg.Offset)
	res, err := c.resyncer.Resync(ctx, service.TriggerPush)
	if err != nil {
		return err
	}
	logger.Info(ctx, "Reconciled on push message",
		"created", len(res.Created), "cancelled", len(res.Cancelled), "failures", len(res.Failures))
	return nil
}
