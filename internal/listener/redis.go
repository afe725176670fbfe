package listener

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisListener receives notifications over a Redis pub/sub channel.
type RedisListener struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisListener creates a listener on channel.
func NewRedisListener(client *redis.Client, channel string, logger *zap.Logger) *RedisListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisListener{client: client, channel: channel, logger: logger}
}

var _ Listener = (*RedisListener)(nil)

// Subscribe returns once the subscription is confirmed by the server.
func (l *RedisListener) Subscribe(ctx context.Context, onChange Handler) (Unsubscribe, error) {
	ps := l.client.Subscribe(ctx, l.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", l.channel, err)
	}

	ch := ps.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ch {
			l.logger.Debug("Change notification", zap.String("table", msg.Payload))
			onChange(msg.Payload)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				l.logger.Warn("Failed to close subscription", zap.Error(err))
			}
			<-done
		})
	}, nil
}

// RedisPublisher publishes table names on a channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

var _ Publisher = (*RedisPublisher)(nil)

// Publish sends table on the channel.
func (p *RedisPublisher) Publish(ctx context.Context, table string) error {
	if err := p.client.Publish(ctx, p.channel, table).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}
