package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper answers whether a dedup key is being seen for the first time.
// The committed TicketEvent is the source of truth: reprocessing the same
// transition must not re-notify.
type Deduper interface {
	FirstSeen(ctx context.Context, key string) bool
}

// memoryDeduper tracks keys within a single process.
type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryDeduper creates a process-local deduper.
func NewMemoryDeduper() Deduper {
	return &memoryDeduper{seen: make(map[string]struct{})}
}

func (d *memoryDeduper) FirstSeen(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// redisDeduper tracks keys across instances with SET NX.
type redisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisDeduper creates a deduper backed by Redis. Keys expire after the
// TTL; reprocessing windows are far shorter than that.
func NewRedisDeduper(client *redis.Client, ttl time.Duration, logger *zap.Logger) Deduper {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisDeduper{client: client, ttl: ttl, logger: logger}
}

func (d *redisDeduper) FirstSeen(ctx context.Context, key string) bool {
	ok, err := d.client.SetNX(ctx, "notified:"+key, 1, d.ttl).Result()
	if err != nil {
		// when redis is unreachable prefer a duplicate send over a lost one
		d.logger.Warn("notification dedup check failed", zap.String("key", key), zap.Error(err))
		return true
	}
	return ok
}
