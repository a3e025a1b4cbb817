package notify

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications as JSON to a topic so other
// storefront components can surface them.
type KafkaNotifier struct {
	writer messageWriter
}

func NewKafkaNotifier(topic string, brokers ...string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			Async:                  true,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Printf("failed to publish %d notifications: %v", len(messages), err)
				}
			},
		},
	}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}

	value, err := json.Marshal(n)
	if err != nil {
		log.Printf("failed to encode notification: %v", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(n.SessionID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "op", Value: []byte(n.Op)},
			{Key: "product_id", Value: []byte(strconv.FormatInt(n.ProductID, 10))},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("failed to publish notification: %v", err)
	}
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
