package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender writes items to a topic keyed by item key.
type KafkaSender struct {
	w      messageWriter
	source string
}

// NewKafkaSender returns a sender writing to topic on brokers.
func NewKafkaSender(brokers []string, topic, source string) *KafkaSender {
	return &KafkaSender{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		source: source,
	}
}

// Name implements Sender.
func (k *KafkaSender) Name() string { return "kafka" }

// Send implements Sender.
func (k *KafkaSender) Send(ctx context.Context, key, value string) error {
	now := time.Now().UTC()
	b, err := json.Marshal(Item{Source: k.source, Key: key, Value: value, Time: now})
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b, Time: now})
}

// Close implements Sender.
func (k *KafkaSender) Close() error { return k.w.Close() }
