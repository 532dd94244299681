// Package redisbackend stores verstats statistics in Redis.
package redisbackend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"code.byted.org/khicago/verstats"
	"github.com/go-redis/redis/v8"
)

// ErrConflict is returned by Update when the key kept changing under
// concurrent writers for every retry.
var ErrConflict = errors.New("redisbackend: update conflict")

const defaultMaxRetries = 16

// Config holds Redis connection settings.
type Config struct {
	URL        string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	// Namespace is prepended to every key so several applications can share
	// one Redis database.
	Namespace string
}

// Backend implements verstats.Backend and verstats.Updater on Redis.
type Backend struct {
	client     *redis.Client
	namespace  string
	maxRetries int
}

var (
	_ verstats.Backend = (*Backend)(nil)
	_ verstats.Updater = (*Backend)(nil)
)

// New wraps an existing client. Keys are prefixed with namespace.
func New(client *redis.Client, namespace string) *Backend {
	return &Backend{client: client, namespace: namespace, maxRetries: defaultMaxRetries}
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, config Config) (*Backend, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB > 0 {
		opts.DB = config.DB
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := New(client, config.Namespace)
	if config.MaxRetries > 0 {
		b.maxRetries = config.MaxRetries
	}
	return b, nil
}

func (b *Backend) key(k string) string {
	return b.namespace + k
}

func (b *Backend) Write(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return b.Delete(ctx, key)
	}
	if err := b.client.Set(ctx, b.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(key)).Bytes()
	if err == redis.Nil {
		return nil, verstats.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// DeletePrefix scans for keys under prefix and deletes them in batches.
func (b *Backend) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := escapeGlob(b.key(prefix)) + "*"
	iter := b.client.Scan(ctx, 0, pattern, 100).Iterator()

	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := b.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
	}
	return flush()
}

func (b *Backend) LastVersion(ctx context.Context) (string, error) {
	data, err := b.Read(ctx, verstats.LastVersionKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (b *Backend) SetLastVersion(ctx context.Context, version string) error {
	return b.Write(ctx, verstats.LastVersionKey, []byte(version))
}

// Update applies fn inside an optimistic WATCH/MULTI transaction, retrying
// when another client modifies the key in between. fn may run more than once.
func (b *Backend) Update(ctx context.Context, key string, fn verstats.UpdateFunc) error {
	k := b.key(key)
	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, k).Bytes()
		found := err == nil
		if err != nil && err != redis.Nil {
			return err
		}

		next, keep, err := fn(old, found)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep && next != nil {
				pipe.Set(ctx, k, next, 0)
			} else {
				pipe.Del(ctx, k)
			}
			return nil
		})
		return err
	}

	for i := 0; i < b.maxRetries; i++ {
		err := b.client.Watch(ctx, txf, k)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis update %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrConflict, key)
}

// Ping checks Redis connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (b *Backend) Close() error {
	return b.client.Close()
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
