package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rigveda-go/internal/corpus"
)

const keyPrefix = "rigveda:rik:"

// Redis is a Store shared between processes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. ttl 0 keeps entries forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// DialRedis parses url, connects and pings.
func DialRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

func redisKey(ref corpus.Reference) string {
	return keyPrefix + ref.String()
}

func (r *Redis) Get(ctx context.Context, ref corpus.Reference) (corpus.Verse, bool, error) {
	data, err := r.client.Get(ctx, redisKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return corpus.Verse{}, false, nil
	}
	if err != nil {
		return corpus.Verse{}, false, fmt.Errorf("redis get: %w", err)
	}

	var v corpus.Verse
	if err := json.Unmarshal(data, &v); err != nil {
		return corpus.Verse{}, false, fmt.Errorf("unmarshal cached rik: %w", err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, v corpus.Verse) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal rik: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(v.Ref), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
