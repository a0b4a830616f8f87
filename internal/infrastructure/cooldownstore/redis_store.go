package cooldownstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"newstack/internal/ports"
)

const (
	DefaultKeyPrefix = "newstack:ingestion:"

	keyLastSuccess = "last_success_at"
	keyLastFailure = "last_failure_at"
	keyRunLock     = "run_lock"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares cooldown timestamps between processes and provides a
// cross-process run lock.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var (
	_ ports.CooldownStore = (*RedisStore)(nil)
	_ ports.RunLocker     = (*RedisStore)(nil)
)

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreWithURL creates a client from a redis:// URL.
func NewRedisStoreWithURL(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), prefix), nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// LastSuccess reads the shared success timestamp; a missing key means never.
func (r *RedisStore) LastSuccess(ctx context.Context) (time.Time, error) {
	return r.get(ctx, keyLastSuccess)
}

// LastFailure reads the shared failure timestamp; a missing key means never.
func (r *RedisStore) LastFailure(ctx context.Context) (time.Time, error) {
	return r.get(ctx, keyLastFailure)
}

// RecordSuccess writes the success timestamp as epoch milliseconds.
func (r *RedisStore) RecordSuccess(ctx context.Context, at time.Time) error {
	return r.set(ctx, keyLastSuccess, at)
}

// RecordFailure writes the failure timestamp as epoch milliseconds.
func (r *RedisStore) RecordFailure(ctx context.Context, at time.Time) error {
	return r.set(ctx, keyLastFailure, at)
}

// TryLock acquires the run lock with SET NX PX. The returned release func is
// safe to call once the lock has expired.
func (r *RedisStore) TryLock(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	key := r.prefix + keyRunLock

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), r.client, []string{key}, token).Err()
	}
	return release, true, nil
}

func (r *RedisStore) get(ctx context.Context, name string) (time.Time, error) {
	raw, err := r.client.Get(ctx, r.prefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get %s: %w", name, err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s value %q: %w", name, raw, err)
	}
	return fromMillis(ms), nil
}

func (r *RedisStore) set(ctx context.Context, name string, at time.Time) error {
	value := strconv.FormatInt(at.UnixMilli(), 10)
	if err := r.client.Set(ctx, r.prefix+name, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}
