package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTransport implements the change-notification transport over redis
// pub/sub. Channels are scoped per ticket (see Channel).
type RedisTransport struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTransport wraps a connected client.
func NewRedisTransport(client *redis.Client, logger *zap.Logger) *RedisTransport {
	return &RedisTransport{client: client, logger: logger}
}

// PublishChange fans the notification out to the ticket-scoped channel.
func (t *RedisTransport) PublishChange(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, Channel(n.Table, n.TicketID), payload).Err()
}

// Subscribe opens a pub/sub subscription on the given channel and pumps
// decoded notifications until the context ends or Close is called.
func (t *RedisTransport) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := t.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan Notification, 8),
	}
	go sub.pump(ctx, t.logger)
	return sub, nil
}

type redisSubscription struct {
	pubsub    *redis.PubSub
	out       chan Notification
	closeOnce sync.Once
}

func (s *redisSubscription) pump(ctx context.Context, logger *zap.Logger) {
	defer close(s.out)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var n Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				logger.Warn("malformed change notification", zap.Error(err), zap.String("channel", msg.Channel))
				continue
			}
			select {
			case s.out <- n:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *redisSubscription) Notifications() <-chan Notification {
	return s.out
}

// Close is idempotent.
func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.pubsub.Close()
	})
	return err
}
