package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"chronoloom/internal/models"
	"chronoloom/internal/scheduler"
	"chronoloom/pkg/logger"
)

// EnsureTopics creates topics with the given partition count (idempotent).
// Call at startup; if it fails (e.g. no broker or topic exists), app still runs.
func EnsureTopics(ctx context.Context, brokers []string, partitions int, topics ...string) {
	if len(brokers) == 0 {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}
	if err := ctrlConn.CreateTopics(configs...); err != nil {
		logger.Debug(ctx, "Kafka create topics failed (topics may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topics ensured", "topics", topics, "partitions", partitions)
}

// NewWriter returns a synchronous writer so delivery errors reach the caller.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// MessageWriter is the part of kafka.Writer the dispatcher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// TokenSource supplies the device push token attached to trigger commands.
type TokenSource interface {
	PushToken(ctx context.Context) (string, error)
}

// Dispatcher publishes schedule, cancel and deliver commands for a push
// service to act on. It cannot list what it has published; wrap it in
// scheduler.Shadow to use it as a Scheduler.
type Dispatcher struct {
	w      MessageWriter
	tokens TokenSource
	now    func() time.Time
}

func NewDispatcher(w MessageWriter, tokens TokenSource) *Dispatcher {
	return &Dispatcher{w: w, tokens: tokens, now: time.Now}
}

func (d *Dispatcher) Schedule(ctx context.Context, id string, payload models.Payload, trigger models.Trigger) error {
	return d.publish(ctx, &models.TriggerCommand{
		Action:         "schedule",
		NotificationID: id,
		Payload:        &payload,
		Trigger:        &trigger,
	})
}

func (d *Dispatcher) Cancel(ctx context.Context, id string) error {
	return d.publish(ctx, &models.TriggerCommand{
		Action:         "cancel",
		NotificationID: id,
	})
}

// Send publishes a notification the local scheduler found due, for a push
// service to deliver immediately.
func (d *Dispatcher) Send(ctx context.Context, n models.ScheduledNotification) error {
	trigger := models.AtTime(n.TriggerTime)
	return d.publish(ctx, &models.TriggerCommand{
		Action:         "deliver",
		NotificationID: n.ID,
		Payload:        &n.Payload,
		Trigger:        &trigger,
	})
}

// publish keys messages by notification id so commands for one id stay ordered.
func (d *Dispatcher) publish(ctx context.Context, cmd *models.TriggerCommand) error {
	if d.tokens != nil {
		token, err := d.tokens.PushToken(ctx)
		if err != nil {
			return fmt.Errorf("%w: read push token: %v", scheduler.ErrUnavailable, err)
		}
		cmd.PushToken = token
	}
	cmd.RequestedAt = d.now().UTC()
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	if err := d.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(cmd.NotificationID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("%w: publish %s %s: %v", scheduler.ErrUnavailable, cmd.Action, cmd.NotificationID, err)
	}
	return nil
}
