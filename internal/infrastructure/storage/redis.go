package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLog stores each key as a redis list, newest at index 0.
type RedisLog struct {
	client *redis.Client
}

// NewRedisLog wraps an existing client.
func NewRedisLog(client *redis.Client) *RedisLog {
	return &RedisLog{client: client}
}

// DialRedis connects and pings.
func DialRedis(ctx context.Context, addr string, db int) (*RedisLog, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedisLog(client), nil
}

func (r *RedisLog) PushFront(ctx context.Context, key string, record []byte, limit int) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, record)
		if limit > 0 {
			pipe.LTrim(ctx, key, 0, int64(limit-1))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

func (r *RedisLog) ReadAll(ctx context.Context, key string) ([][]byte, error) {
	values, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out, nil
}

func (r *RedisLog) Replace(ctx context.Context, key string, records [][]byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(records) > 0 {
			values := make([]interface{}, len(records))
			for i, rec := range records {
				values[i] = rec
			}
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace events: %w", err)
	}
	return nil
}

func (r *RedisLog) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	return nil
}

func (r *RedisLog) Close() error {
	return r.client.Close()
}
