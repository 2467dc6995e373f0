package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cartify:address-lock:"

// ErrLockTimeout is returned when the lock could not be acquired within the
// configured wait budget.
var ErrLockTimeout = errors.New("owner lock wait exceeded")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisConfig tunes a RedisLocker.
type RedisConfig struct {
	TTL   time.Duration
	Wait  time.Duration
	Retry time.Duration
}

// DefaultRedisConfig returns the lock settings used when none are configured.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		TTL:   5 * time.Second,
		Wait:  3 * time.Second,
		Retry: 25 * time.Millisecond,
	}
}

// RedisLocker is an OwnerLocker shared by every instance pointing at the same Redis.
type RedisLocker struct {
	client redis.UniversalClient
	cfg    RedisConfig
	logger *slog.Logger
}

// NewRedisLocker creates a Redis-backed locker. Zero fields in cfg take
// their DefaultRedisConfig value.
func NewRedisLocker(client redis.UniversalClient, cfg RedisConfig, logger *slog.Logger) *RedisLocker {
	def := DefaultRedisConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Wait <= 0 {
		cfg.Wait = def.Wait
	}
	if cfg.Retry <= 0 {
		cfg.Retry = def.Retry
	}
	return &RedisLocker{client: client, cfg: cfg, logger: logger}
}

// Key returns the Redis key guarding ownerID.
func Key(ownerID string) string {
	return keyPrefix + ownerID
}

// Lock polls SET NX until the key is ours, ctx is done, or the wait budget runs out.
func (l *RedisLocker) Lock(ctx context.Context, ownerID string) (func(), error) {
	key := Key(ownerID)
	token := uuid.New().String()

	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.Wait)
	defer cancel()

	ticker := time.NewTicker(l.cfg.Retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.cfg.TTL).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("lock owner %s: %w", ownerID, ErrLockTimeout)
			}
			return nil, fmt.Errorf("lock owner %s: %w", ownerID, err)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("lock owner %s: %w", ownerID, ctx.Err())
			}
			return nil, fmt.Errorf("lock owner %s: %w", ownerID, ErrLockTimeout)
		}
	}
}

func (l *RedisLocker) unlockFunc(key, token string) func() {
	return func() {
		// The caller's context may already be canceled; release must still run.
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.Retry+time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release owner lock",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}
