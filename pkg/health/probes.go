package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/querylens-ai/querylens-engine/pkg/database"
)

// Dependency names used for probe registration and score weights.
const (
	DependencyStorage  = "storage"
	DependencyProvider = "provider"
	DependencyCache    = "cache"
	DependencyIndex    = "index"
)

// IndexHeartbeatKey is the redis key the vector index service refreshes;
// the index probe treats a fresh heartbeat as healthy.
const IndexHeartbeatKey = "querylens:index:heartbeat"

// StorageProbe pings the PostgreSQL pool.
type StorageProbe struct {
	DB *database.DB
}

func (p StorageProbe) Name() string { return DependencyStorage }

func (p StorageProbe) Check(ctx context.Context) (bool, time.Duration) {
	start := time.Now()
	if p.DB == nil {
		return false, 0
	}
	err := p.DB.Ping(ctx)
	return err == nil, time.Since(start)
}

// CacheProbe pings Redis. A nil client means the cache tier is not
// configured and the probe reports unavailable.
type CacheProbe struct {
	Client *redis.Client
}

func (p CacheProbe) Name() string { return DependencyCache }

func (p CacheProbe) Check(ctx context.Context) (bool, time.Duration) {
	start := time.Now()
	if p.Client == nil {
		return false, 0
	}
	err := p.Client.Ping(ctx).Err()
	return err == nil, time.Since(start)
}

// IndexProbe checks the vector index heartbeat key in Redis. The index
// service refreshes the key on its own schedule; a missing or stale value
// means the index is unavailable.
type IndexProbe struct {
	Client   *redis.Client
	Key      string
	MaxStale time.Duration
}

func (p IndexProbe) Name() string { return DependencyIndex }

func (p IndexProbe) Check(ctx context.Context) (bool, time.Duration) {
	start := time.Now()
	if p.Client == nil {
		return false, 0
	}

	key := p.Key
	if key == "" {
		key = IndexHeartbeatKey
	}

	val, err := p.Client.Get(ctx, key).Result()
	latency := time.Since(start)
	if err != nil {
		return false, latency
	}

	beat, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return false, latency
	}

	maxStale := p.MaxStale
	if maxStale == 0 {
		maxStale = time.Minute
	}

	return time.Since(beat) <= maxStale, latency
}
