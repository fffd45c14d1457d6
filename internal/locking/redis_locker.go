package locking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock key only when the caller still owns it, so
// a lock that expired and was re-acquired elsewhere is never released by the
// stale holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`

// redisLocker serializes keys across instances with SET NX PX.
type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a distributed locker backed by Redis. The TTL
// bounds lock lifetime if a holder crashes mid-operation.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) Locker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &redisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lockKey := "lock:" + key

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := l.client.Eval(releaseCtx, releaseScript, []string{lockKey}, token).Err(); err != nil {
					l.logger.Warn("lock release failed", zap.String("key", lockKey), zap.Error(err))
				}
			}, nil
		}

		select {
		case <-time.After(retryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
