package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
}

// ConsumeTicketEvents decodes each message as a TicketEvent before handing
// it off. Undecodable messages are logged and skipped, they never stall
// the partition.
func (c *Consumer) ConsumeTicketEvents(ctx context.Context, handler func(context.Context, TicketEvent) error) error {
	return c.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
		event, err := decodeTicketEvent(msg.Value)
		if err != nil {
			logrus.WithError(err).WithField("topic", msg.Topic).Warn("skipping undecodable message")
			return nil
		}
		return handler(ctx, event)
	})
}

func decodeTicketEvent(value []byte) (TicketEvent, error) {
	var event TicketEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return TicketEvent{}, fmt.Errorf("decode ticket event: %w", err)
	}
	return event, nil
}
