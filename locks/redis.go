package locks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// only the owner may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Defaults for Redis
const (
	DefaultTTL   = 30 * time.Second
	DefaultRetry = 50 * time.Millisecond
)

// Redis is a SET NX PX lock
type Redis struct {
	client redis.UniversalClient
	prefix string
	// TTL bounds how long a crashed holder can block a key
	TTL   time.Duration
	Retry time.Duration
}

// NewRedis returns a lock namespaced under prefix
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "vehicle_tax:lock"
	}
	return &Redis{client: client, prefix: p, TTL: DefaultTTL, Retry: DefaultRetry}
}

func (r *Redis) key(name string) string {
	return fmt.Sprintf("%s:%s", r.prefix, name)
}

// TryAcquireLock takes name for owner if it is free
func (r *Redis) TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.key(name), owner, ttl).Result()
}

// ReleaseLock frees name if owner still holds it
func (r *Redis) ReleaseLock(ctx context.Context, name, owner string) error {
	return releaseScript.Run(ctx, r.client, []string{r.key(name)}, owner).Err()
}

// Acquire waits until key is free or ctx ends
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	owner := uuid.NewString()
	for {
		ok, err := r.TryAcquireLock(ctx, key, owner, r.TTL)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := r.ReleaseLock(ctx, key, owner); err != nil {
					zap.S().Warnw("failed to release lock",
						"key", key,
						"error", err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-time.After(r.Retry):
		}
	}
}

// Connect parses url, pings the server and returns the client
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
