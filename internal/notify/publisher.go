// Package notify drains the report_events outbox into a notification sink.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Publisher hands one encoded event to the notification sink.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// RedisPublisher publishes events on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(redisURL, channel string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("connected to redis", "addr", opts.Addr, "channel", channel)
	return &RedisPublisher{client: client, channel: channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, payload []byte) error {
	return p.client.Publish(ctx, p.channel, payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// LogPublisher writes events to the structured log. Used when no Redis is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, payload []byte) error {
	p.logger.InfoContext(ctx, "report event", "payload", string(payload))
	return nil
}

// NewPublisher picks Redis when a URL is configured and the log otherwise. The
// returned close func is always safe to call.
func NewPublisher(redisURL, channel string) (Publisher, func() error, error) {
	if redisURL == "" {
		slog.Warn("REDIS_URL not set, report events go to the log")
		return NewLogPublisher(nil), func() error { return nil }, nil
	}
	p, err := NewRedisPublisher(redisURL, channel)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
