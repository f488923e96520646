package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Amund211/batchroom/internal/adapters/cache"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultRedisNamespace = "batchroom"

// Keys deleted per DEL while invalidating a prefix
const scanBatchSize = 500

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Namespace is prepended to every key, separated by a colon
	Namespace string
}

type Redis struct {
	client    *redis.Client
	namespace string
	tracer    trace.Tracer
	nowFunc   func() time.Time
}

// redisEnvelope is the stored representation of a cache entry
type redisEnvelope struct {
	StoredAt time.Time       `json:"storedAt"`
	Value    json.RawMessage `json:"value"`
}

// NewRedis connects to redis and pings it before returning
func NewRedis(ctx context.Context, cfg RedisConfig, nowFunc func() time.Time) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisWithClient(client, cfg.Namespace, nowFunc), nil
}

func NewRedisWithClient(client *redis.Client, namespace string, nowFunc func() time.Time) *Redis {
	if namespace == "" {
		namespace = defaultRedisNamespace
	}
	return &Redis{
		client:    client,
		namespace: namespace,
		tracer:    otel.Tracer("batchroom/keystore/redis"),
		nowFunc:   nowFunc,
	}
}

func (r *Redis) key(key string) string {
	return r.namespace + ":" + key
}

func (r *Redis) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	ctx, span := r.tracer.Start(ctx, "Redis.Get")
	defer span.End()

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var envelope redisEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return cache.Entry{}, false, fmt.Errorf("failed to unmarshal stored entry for '%s': %w", key, err)
	}
	if len(envelope.Value) == 0 {
		return cache.Entry{}, false, fmt.Errorf("stored entry for '%s' has no value", key)
	}

	return cache.Entry{
		Key:      key,
		Value:    envelope.Value,
		StoredAt: envelope.StoredAt,
	}, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, value json.RawMessage) error {
	ctx, span := r.tracer.Start(ctx, "Redis.Put")
	defer span.End()

	data, err := json.Marshal(redisEnvelope{
		StoredAt: r.nowFunc(),
		Value:    value,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal entry for '%s': %w", key, err)
	}

	// NOTE: No expiry. Entries live until they are overwritten or invalidated.
	if err := r.client.Set(ctx, r.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	ctx, span := r.tracer.Start(ctx, "Redis.Invalidate")
	defer span.End()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) error {
	ctx, span := r.tracer.Start(ctx, "Redis.InvalidatePrefix")
	defer span.End()

	match := escapeGlob(r.key(prefix)) + "*"

	batch := make([]string, 0, scanBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del failed: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, match, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}

	return flush()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob escapes the characters redis treats specially in MATCH patterns
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
