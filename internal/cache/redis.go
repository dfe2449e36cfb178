// Package cache backs alert caching and the reconcile lock with Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/funnelkit/qrstock/internal/config"
	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	keyPrefix      = "qrstock:"
	alertsVersion  = keyPrefix + "alerts:version"
	defaultPoolCap = 20
)

// Redis caches alert reports under a version key that every invalidation
// bumps, and hands out redislock leases.
type Redis struct {
	client *redis.Client
	locker *redislock.Client
}

// Connect dials Redis and verifies it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: defaultPoolCap,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis %s: %w", cfg.Addr, err)
	}
	return New(client), nil
}

// New wraps an existing client.
func New(client *redis.Client) *Redis {
	return &Redis{client: client, locker: redislock.New(client)}
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) version(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, alertsVersion).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return v, err
}

// Get returns a cached report and the version it was looked up under.
// Redis errors count as a miss with no version.
func (r *Redis) Get(ctx context.Context, key string) (inventory.AlertReport, string, bool) {
	version, err := r.version(ctx)
	if err != nil {
		log.WithError(err).Debug("alert cache: read version")
		return inventory.AlertReport{}, "", false
	}
	raw, err := r.client.Get(ctx, reportKey(version, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).Debug("alert cache: get")
		}
		return inventory.AlertReport{}, version, false
	}
	var report inventory.AlertReport
	if errUnmarshal := json.Unmarshal(raw, &report); errUnmarshal != nil {
		return inventory.AlertReport{}, version, false
	}
	return report, version, true
}

// Set stores a report for ttl under version. A report computed before an
// invalidation lands under the orphaned version and is never read.
func (r *Redis) Set(ctx context.Context, version, key string, report inventory.AlertReport, ttl time.Duration) {
	if ttl <= 0 || version == "" {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if errSet := r.client.Set(ctx, reportKey(version, key), raw, ttl).Err(); errSet != nil {
		log.WithError(errSet).Debug("alert cache: set")
	}
}

func reportKey(version, key string) string {
	return keyPrefix + version + ":" + key
}

// Invalidate orphans every cached report by bumping the version.
func (r *Redis) Invalidate(ctx context.Context) {
	if err := r.client.Incr(ctx, alertsVersion).Err(); err != nil {
		log.WithError(err).Warn("alert cache: invalidate")
	}
}

// TryLock obtains a redislock lease on key for ttl.
func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lock, err := r.locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	release := func() {
		if errRelease := lock.Release(context.Background()); errRelease != nil && !errors.Is(errRelease, redislock.ErrLockNotHeld) {
			log.WithError(errRelease).Warn("release lock")
		}
	}
	return release, true, nil
}

var (
	_ inventory.AlertCache = (*Redis)(nil)
	_ inventory.Locker     = (*Redis)(nil)
)
