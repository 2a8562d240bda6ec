package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"transfer-ever/pkg/logger"
)

// RedisConfig describes the Redis list transport.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	Inbound   string
	BlockWait time.Duration
}

// RedisBus uses one Redis list per topic: LPUSH to publish, BRPOP to consume.
type RedisBus struct {
	client  *redis.Client
	prefix  string
	inbound string
	wait    time.Duration
}

// NewRedisBus connects to Redis.
func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return newRedisBus(client, cfg), nil
}

func newRedisBus(client *redis.Client, cfg RedisConfig) *RedisBus {
	inbound := cfg.Inbound
	if inbound == "" {
		inbound = TopicCommands
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisBus{client: client, prefix: cfg.KeyPrefix, inbound: inbound, wait: wait}
}

func (b *RedisBus) key(topic string) string {
	return b.prefix + topic
}

// Publish pushes msg onto the topic list.
func (b *RedisBus) Publish(ctx context.Context, topic string, msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := b.client.LPush(ctx, b.key(topic), payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", topic, err)
	}
	return nil
}

// Consume pops messages from the inbound list. A popped message is gone
// from Redis, so handler failures are not redelivered.
func (b *RedisBus) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	log := logger.Named("bus.redis")
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, workerCount)
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				values, err := b.client.BRPop(ctx, b.wait, b.key(b.inbound)).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue
					}
					if ctx.Err() != nil {
						return
					}
					errCh <- fmt.Errorf("redis consume: %w", err)
					return
				}
				if len(values) != 2 {
					continue
				}
				msg, err := Decode([]byte(values[1]))
				if err != nil {
					log.Warn("dropping malformed message", slog.Any("error", err))
					continue
				}
				_ = handler(ctx, msg)
			}
		}()
	}

	var err error
	select {
	case <-parent.Done():
		err = parent.Err()
	case err = <-errCh:
	}
	cancel()
	wg.Wait()
	return err
}

// Close closes the Redis client.
func (b *RedisBus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

var _ Bus = (*RedisBus)(nil)
