package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-training/integration-broker/pkg/core"
	"github.com/redis/rueidis"
)

// RedisStore implements the core.Store interface using Redis via rueidis.
// Reads never go through the client-side cache: a deleted state or
// credential key must not be observed again.
type RedisStore struct {
	client rueidis.Client
}

// NewRedisStore creates a new instance of RedisStore with the provided rueidis client.
func NewRedisStore(client rueidis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// RedisOptions contains configuration for Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStoreFromOptions creates a new RedisStore with simplified options.
func NewRedisStoreFromOptions(opts RedisOptions) (*RedisStore, error) {
	return NewRedisStoreFromClientOption(rueidis.ClientOption{
		InitAddress:  []string{opts.Addr},
		Password:     opts.Password,
		SelectDB:     opts.DB,
		DisableCache: true,
	})
}

// NewRedisStoreFromClientOption creates a new RedisStore with full rueidis client options.
func NewRedisStoreFromClientOption(opts rueidis.ClientOption) (*RedisStore, error) {
	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return NewRedisStore(client), nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() {
	r.client.Close()
}

// Ping checks the connection to Redis.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Do(ctx, r.client.B().Ping().Build()).Error()
}

// Set stores value under key with an expiry. Whole-second TTLs use EX,
// anything finer uses PX rounded up to the next millisecond.
func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	var cmd rueidis.Completed
	if ttl%time.Second == 0 {
		cmd = r.client.B().Set().Key(key).Value(value).ExSeconds(int64(ttl / time.Second)).Build()
	} else {
		ms := (ttl + time.Millisecond - 1) / time.Millisecond
		cmd = r.client.B().Set().Key(key).Value(value).PxMilliseconds(int64(ms)).Build()
	}
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to set %q in redis: %w", key, err)
	}
	return nil
}

// Get returns the value under key or core.ErrKeyNotFound.
func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	cmd := r.client.B().Get().Key(key).Build()
	result, err := r.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", core.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get %q from redis: %w", key, err)
	}
	return result, nil
}

// Delete removes key. A missing key is not an error.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	cmd := r.client.B().Del().Key(key).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete %q from redis: %w", key, err)
	}
	return nil
}

// GetDel uses GETDEL (Redis >= 6.2) so only one concurrent caller observes the value.
func (r *RedisStore) GetDel(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	cmd := r.client.B().Getdel().Key(key).Build()
	result, err := r.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", core.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to getdel %q from redis: %w", key, err)
	}
	return result, nil
}
