package events

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

// Producer publishes notification requests.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}}
}

// Publish validates req and writes it keyed by recipient, so requests for one
// recipient stay ordered within a partition.
func (p *Producer) Publish(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(req.RecipientID),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error { return p.writer.Close() }
