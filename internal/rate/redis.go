package rate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps failures talking to the Redis backend.
var ErrRedisUnavailable = errors.New("redis unavailable")

// keyPrefix namespaces login windows in a shared Redis.
const keyPrefix = "goguard:login:"

// hitScript bumps the window counter and arms its expiry on the first hit,
// atomically.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Redis is a fixed-window [Limiter] shared across instances through Redis.
type Redis struct {
	client redis.UniversalClient
	config Config
}

// NewRedis creates a [Redis] limiter backed by client.
func NewRedis(client redis.UniversalClient, cfg Config) *Redis {
	return &Redis{client: client, config: cfg}
}

// Allow implements [Limiter]. Denied attempts still count; the key expires
// with the window so the count restarts at 1 afterwards.
func (l *Redis) Allow(ctx context.Context, clientKey string) (bool, error) {
	if clientKey == "" {
		return true, nil
	}
	n, err := hitScript.Run(ctx, l.client, []string{windowKey(clientKey)}, l.config.Window.Milliseconds()).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return n <= int64(l.config.MaxAttempts), nil
}

// Attempts returns the current counter for clientKey, zero if none.
func (l *Redis) Attempts(ctx context.Context, clientKey string) (int, error) {
	n, err := l.client.Get(ctx, windowKey(clientKey)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, unavailable(err)
	}
	return max(n, 0), nil
}

// Reset clears the window for clientKey.
func (l *Redis) Reset(ctx context.Context, clientKey string) error {
	if err := l.client.Del(ctx, windowKey(clientKey)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func windowKey(clientKey string) string {
	return keyPrefix + clientKey
}
