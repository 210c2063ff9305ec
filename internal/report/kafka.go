package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/eigerco/blocktransfer/internal/transfer"
)

// DefaultTopic receives outcomes when no topic is configured.
const DefaultTopic = "transfer_outcomes"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes outcomes as JSON, keyed by attempt id so all records of
// an attempt land on the same partition.
type KafkaSink struct {
	writer messageWriter
}

var _ transfer.Sink = (*KafkaSink)(nil)

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (s *KafkaSink) Record(ctx context.Context, outcome transfer.Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(outcome.AttemptID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(outcome.Status.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
