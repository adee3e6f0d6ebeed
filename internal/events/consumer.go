package events

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/config"
	"github.com/01moynul/projecthub-golang/internal/notify"
)

// messageReader is the subset of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer turns notification requests from Kafka into notifications.
type Consumer struct {
	reader   messageReader
	notifier notify.Notifier
	log      *zap.Logger

	attempts int
	backoff  time.Duration
}

func NewConsumer(cfg config.KafkaConfig, notifier notify.Notifier, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return newConsumer(r, notifier, log)
}

func newConsumer(r messageReader, notifier notify.Notifier, log *zap.Logger) *Consumer {
	return &Consumer{
		reader:   r,
		notifier: notifier,
		log:      log,
		attempts: 3,
		backoff:  time.Second,
	}
}

// HandleMessage decodes one message value and dispatches it.
func (c *Consumer) HandleMessage(ctx context.Context, value []byte) error {
	req, err := DecodeRequest(value)
	if err != nil {
		return err
	}
	_, err = c.notifier.Notify(ctx, req.RecipientID, req.Type, req.Title, req.Message,
		&notify.Associations{Project: req.Project, Task: req.Task})
	return err
}

// Run reads until ctx is cancelled. Every message is committed once handled;
// invalid messages are skipped and failing ones are retried a few times first.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("kafka fetch failed", zap.Error(err))
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}

		c.process(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.log.Error("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, m kafka.Message) {
	fields := []zap.Field{
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	}

	for attempt := 1; attempt <= c.attempts; attempt++ {
		err := c.HandleMessage(ctx, m.Value)
		switch {
		case err == nil:
			return
		case errors.Is(err, ErrInvalidRequest) || errors.Is(err, notify.ErrInvalidArgument):
			c.log.Warn("skipping invalid notification request", append(fields, zap.Error(err))...)
			return
		}

		c.log.Error("notification request failed", append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
		if attempt < c.attempts && !sleep(ctx, c.backoff*time.Duration(attempt)) {
			return
		}
	}
	c.log.Error("giving up on notification request", fields...)
}

func (c *Consumer) Close() error { return c.reader.Close() }

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
