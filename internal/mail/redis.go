// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultRedisKey is the list used when RedisConfig.Key is empty.
const DefaultRedisKey = "gatekeeper:mail"

// redisPollInterval bounds how long a Pop blocks before checking for Close.
const redisPollInterval = time.Second

// RedisConfig configures a RedisBacklog.
type RedisConfig struct {
	Key      string
	Capacity int64
}

// RedisBacklog keeps queued mail in a Redis list so it survives restarts.
// Messages are pushed on the left and popped from the right.
type RedisBacklog struct {
	client   redis.UniversalClient
	key      string
	capacity int64

	stop   context.Context
	cancel context.CancelFunc
}

// NewRedisBacklog creates a backlog on client. A zero capacity means
// unbounded.
func NewRedisBacklog(client redis.UniversalClient, cfg RedisConfig) (*RedisBacklog, error) {
	if client == nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("redis client is required")
	}
	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}
	stop, cancel := context.WithCancel(context.Background())
	return &RedisBacklog{
		client:   client,
		key:      key,
		capacity: cfg.Capacity,
		stop:     stop,
		cancel:   cancel,
	}, nil
}

// Push implements Backlog. The capacity check and the push are not atomic,
// so the list can overshoot capacity by the number of concurrent senders.
func (b *RedisBacklog) Push(ctx context.Context, msg Message) error {
	if b.stop.Err() != nil {
		return ErrQueueClosed
	}
	if b.capacity > 0 {
		n, err := b.client.LLen(ctx, b.key).Result()
		if err != nil {
			return oops.Code("MAIL_REDIS_FAILED").With("operation", "llen").Wrap(err)
		}
		if n >= b.capacity {
			return ErrQueueFull
		}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("MAIL_ENCODE_FAILED").With("message_id", msg.ID).Wrap(err)
	}
	if err := b.client.LPush(ctx, b.key, data).Err(); err != nil {
		return oops.Code("MAIL_REDIS_FAILED").With("operation", "lpush").Wrap(err)
	}
	return nil
}

// Requeue puts msg back at the consuming end of the list so it is the next
// message popped. It works after Close, so a message a worker held at
// shutdown is kept for the next process.
func (b *RedisBacklog) Requeue(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("MAIL_ENCODE_FAILED").With("message_id", msg.ID).Wrap(err)
	}
	if err := b.client.RPush(ctx, b.key, data).Err(); err != nil {
		return oops.Code("MAIL_REDIS_FAILED").With("operation", "rpush").Wrap(err)
	}
	return nil
}

// Pop implements Backlog. Messages still in Redis at Close stay there for
// the next process.
func (b *RedisBacklog) Pop() (Message, error) {
	for {
		if b.stop.Err() != nil {
			return Message{}, errDrained
		}
		res, err := b.client.BRPop(b.stop, redisPollInterval, b.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if b.stop.Err() != nil {
				return Message{}, errDrained
			}
			return Message{}, oops.Code("MAIL_REDIS_FAILED").With("operation", "brpop").Wrap(err)
		}
		// BRPOP replies with [key, value].
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return Message{}, oops.Code("MAIL_DECODE_FAILED").Wrap(err)
		}
		return msg, nil
	}
}

// Len returns the number of queued messages.
func (b *RedisBacklog) Len(ctx context.Context) (int64, error) {
	n, err := b.client.LLen(ctx, b.key).Result()
	if err != nil {
		return 0, oops.Code("MAIL_REDIS_FAILED").With("operation", "llen").Wrap(err)
	}
	return n, nil
}

// Ping reports whether Redis answers. It backs the readiness check.
func (b *RedisBacklog) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return oops.Code("MAIL_REDIS_FAILED").With("operation", "ping").Wrap(err)
	}
	return nil
}

// Close implements Backlog. The Redis client is owned by the caller.
func (b *RedisBacklog) Close() error {
	b.cancel()
	return nil
}
