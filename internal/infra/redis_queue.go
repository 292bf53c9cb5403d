// Package infra provides the concrete queue adapters. RedisQueue wraps
// go-redis v9 over a Redis list; MemQueue is the in-process fallback used by
// tests and the seeder.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a durable FIFO over a Redis list. The producer pushes with
// RPUSH, the consumer blocks on BLPOP.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

// NewRedisQueue connects to Redis and verifies connectivity with a ping.
func NewRedisQueue(addr string, db int, key string) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  3 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	slog.Info("Redis connected", "addr", addr, "db", db, "queue", key)
	return &RedisQueue{rdb: rdb, key: key}, nil
}

// Push appends a payload to the tail of the queue.
func (q *RedisQueue) Push(ctx context.Context, payload []byte) error {
	return q.rdb.RPush(ctx, q.key, payload).Err()
}

// BlockingPop removes and returns the head of the queue, blocking until a
// message arrives or the context is cancelled.
func (q *RedisQueue) BlockingPop(ctx context.Context) ([]byte, error) {
	res, err := q.rdb.BLPop(ctx, 0, q.key).Result()
	if err != nil {
		return nil, err
	}
	// BLPOP returns [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply length %d", len(res))
	}
	return []byte(res[1]), nil
}

// Len returns the current queue depth.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Close shuts down the underlying client, unblocking any in-flight pop.
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
