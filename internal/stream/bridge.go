package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Pub/Sub channel shared by all API instances.
const DefaultChannel = "projecthub:notifications:sse"

// envelope is the message shape published on the channel.
type envelope struct {
	RecipientID string          `json:"recipientId"`
	Payload     json.RawMessage `json:"payload"`
	SentAt      time.Time       `json:"sentAt"`
}

// RedisBridge fans events out to every instance through Redis Pub/Sub. Each
// instance runs the subscriber and replays envelopes into its local Registry,
// so a recipient is reached whichever instance holds their stream.
type RedisBridge struct {
	client   *redis.Client
	channel  string
	registry *Registry
	log      *zap.Logger

	publishTimeout time.Duration
}

// NewRedisBridge wires client to the local registry.
func NewRedisBridge(client *redis.Client, channel string, registry *Registry, log *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBridge{
		client:         client,
		channel:        channel,
		registry:       registry,
		log:            log,
		publishTimeout: 2 * time.Second,
	}
}

// Send publishes event for recipientID. True means Redis accepted the
// message; whether any instance holds a stream is not known here.
func (b *RedisBridge) Send(recipientID string, event any) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error("encoding stream event", zap.String("recipient", recipientID), zap.Error(err))
		return false
	}
	body, err := json.Marshal(envelope{
		RecipientID: recipientID,
		Payload:     payload,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		b.log.Error("encoding redis envelope", zap.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
	defer cancel()

	if err := b.client.Publish(ctx, b.channel, body).Err(); err != nil {
		b.log.Warn("publishing stream event to redis",
			zap.String("channel", b.channel),
			zap.String("recipient", recipientID),
			zap.Error(err))
		return false
	}
	return true
}

// Run subscribes to the channel and delivers envelopes to the local registry
// until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to redis channel %s: %w", b.channel, err)
	}
	b.log.Info("redis stream bridge subscribed", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.deliver(msg.Payload)
		}
	}
}

// deliver replays one raw envelope into the registry and reports whether a
// local stream received it.
func (b *RedisBridge) deliver(raw string) bool {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.log.Warn("skipping malformed redis envelope", zap.String("channel", b.channel), zap.Error(err))
		return false
	}
	if env.RecipientID == "" || len(env.Payload) == 0 {
		return false
	}
	return b.registry.Send(env.RecipientID, env.Payload)
}
