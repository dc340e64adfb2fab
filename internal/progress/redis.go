package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathan/cover-letter-studio/internal/logger"
)

// DefaultRedisChannel is used when no channel is configured.
const DefaultRedisChannel = "letter-progress"

// RedisPublisher relays updates through a Redis pub/sub channel so every
// server instance can stream progress for any owner.
type RedisPublisher struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher connects to addr and verifies the connection.
func NewRedisPublisher(ctx context.Context, addr, channel string, log *logger.Logger) (*RedisPublisher, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if log == nil {
		log = logger.Nop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisPublisher{
		log:     log.With("component", "progress_redis"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

// Client returns the underlying connection so other caches can share it.
func (p *RedisPublisher) Client() *redis.Client {
	return p.rdb
}

// Publish sends u as JSON on the configured channel.
func (p *RedisPublisher) Publish(ctx context.Context, u Update) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// Forward subscribes to the channel and republishes each update to dst until
// ctx is done. It returns once the subscription is confirmed.
func (p *RedisPublisher) Forward(ctx context.Context, dst Publisher) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close() //nolint:errcheck
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(m.Payload), &u); err != nil {
					p.log.Warn("bad progress payload", "error", err)
					continue
				}
				if err := dst.Publish(ctx, u); err != nil {
					p.log.Warn("failed to forward progress", "error", err)
				}
			}
		}
	}()
	return nil
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
