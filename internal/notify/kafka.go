package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier hands mails to a downstream notification service through a
// Kafka topic. Writes are synchronous and wait for the leader's ack.
type KafkaNotifier struct {
	writer messageWriter
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
		},
	}
}

type emailEvent struct {
	Type string `json:"type"`
	Message
	CreatedAt time.Time `json:"created_at"`
}

func (n *KafkaNotifier) Send(ctx context.Context, msg Message) error {
	const op = "notify.KafkaNotifier.Send"

	payload, err := json.Marshal(emailEvent{Type: "email", Message: msg, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.To), Value: payload}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
