package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.trai.ch/zerr"
)

var (
	// ErrRedisURL is returned by Connect for an unparsable connection URL.
	ErrRedisURL = errors.New("store: invalid redis url")
	// ErrRedisNotReady is returned when the server never answered a ping.
	ErrRedisNotReady = errors.New("store: redis not ready")
)

// DefaultPrefix namespaces fragment keys in Redis.
const DefaultPrefix = "fragcache:"

// Connect parses url and pings the server, retrying up to attempts times.
func Connect(ctx context.Context, url string, attempts int, interval time.Duration) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, zerr.Wrap(fmt.Errorf("%w: %w", ErrRedisURL, err), "parse redis url")
	}
	attempts = max(attempts, 1)
	for i := range attempts {
		client := redis.NewClient(opt)
		perr := client.Ping(ctx).Err()
		if perr == nil {
			return client, nil
		}
		_ = client.Close()
		if i == attempts-1 {
			return nil, zerr.With(zerr.Wrap(fmt.Errorf("%w: %w", ErrRedisNotReady, perr), fmt.Sprintf("ping redis after %d attempts", attempts)), "attempts", attempts)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrRedisNotReady, ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, ErrRedisNotReady
}

// Redis stores fragments in Redis with native key expiry, so replicas of
// the server share one freshness window.
type Redis struct {
	db     redis.UniversalClient
	prefix string
}

// NewRedis wraps client. An empty prefix means DefaultPrefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{db: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	v, err := r.db.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, fmt.Sprintf("redis get %q", key)), "key", key)
	}
	return v, nil
}

func (r *Redis) Put(ctx context.Context, key, payload string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.db.Set(ctx, r.prefix+key, payload, max(ttl, 0)).Err(); err != nil {
		return zerr.With(zerr.Wrap(err, fmt.Sprintf("redis set %q", key)), "key", key)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.db.Del(ctx, r.prefix+key).Err(); err != nil {
		return zerr.With(zerr.Wrap(err, fmt.Sprintf("redis del %q", key)), "key", key)
	}
	return nil
}

// Ping reports whether the server is reachable.
func (r *Redis) Ping(ctx context.Context) error { return r.db.Ping(ctx).Err() }

// Close closes the client.
func (r *Redis) Close() error { return r.db.Close() }

var _ Store = (*Redis)(nil)
