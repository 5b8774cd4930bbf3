package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-list-backed queue gateway.
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	Key          string
	WaitTime     time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// RedisGateway reads transcode jobs from a Redis list. Received payloads are
// moved onto a processing list; Delete removes the payload from the
// processing list. Entries stranded there by a consumer crash are put back on
// the main list by Reclaim, which callers run once at startup.
type RedisGateway struct {
	client     *redis.Client
	key        string
	processing string
	waitTime   time.Duration
}

// NewRedisGateway opens a Redis connection for queue consumption.
func NewRedisGateway(cfg RedisConfig) (*RedisGateway, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr required")
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = "vodforge:jobs"
	}
	waitTime := cfg.WaitTime
	if waitTime <= 0 {
		waitTime = 10 * time.Second
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout > 0 && readTimeout <= waitTime {
		// the blocking pop must be allowed to outlast the read deadline
		readTimeout = waitTime + time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     strings.TrimSpace(cfg.Username),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   2,
	})
	return &RedisGateway{
		client:     client,
		key:        key,
		processing: key + ":processing",
		waitTime:   waitTime,
	}, nil
}

// Reclaim moves every entry left on the processing list back onto the main
// list and reports how many were requeued. Run it before polling starts; with
// concurrent consumers it would requeue their in-flight deliveries.
func (g *RedisGateway) Reclaim(ctx context.Context) (int, error) {
	requeued := 0
	for {
		err := g.client.LMove(ctx, g.processing, g.key, "RIGHT", "LEFT").Err()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return requeued, nil
			}
			return requeued, fmt.Errorf("reclaim job: %w", err)
		}
		requeued++
	}
}

func (g *RedisGateway) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}

	messages := make([]Message, 0, max)
	for len(messages) < max {
		wait := g.waitTime
		if len(messages) > 0 {
			// drain without blocking once the first message is in hand
			wait = time.Millisecond
		}
		payload, err := g.client.BLMove(ctx, g.key, g.processing, "LEFT", "RIGHT", wait).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return messages, fmt.Errorf("pop job: %w", err)
		}
		messages = append(messages, Message{Body: payload, ReceiptHandle: payload})
	}
	return messages, nil
}

func (g *RedisGateway) Delete(ctx context.Context, receiptHandle string) error {
	if strings.TrimSpace(receiptHandle) == "" {
		return ErrReceiptRequired
	}
	if err := g.client.LRem(ctx, g.processing, 1, receiptHandle).Err(); err != nil {
		return fmt.Errorf("ack job: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (g *RedisGateway) Close() error {
	return g.client.Close()
}
