package notify

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rl1809/campus-market/internal/core/domain"
)

// KafkaNotifier publishes market events for the notification collaborator
// (the email service consumes the topic). Delivery is fire-and-forget from the
// checkout's perspective.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (n *KafkaNotifier) Publish(ctx context.Context, event domain.MarketEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Time:  event.At,
	})
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier stands in when no brokers are configured; events are only
// logged.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Publish(_ context.Context, event domain.MarketEvent) error {
	n.Logger.Info("notification",
		zap.String("kind", string(event.Kind)),
		zap.String("order_id", event.OrderID))
	return nil
}
