package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paysettle/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrLockHeld means another instance is running the healing tick.
var ErrLockHeld = errors.New("scheduler_lock_held")

// Locker guards a tick across instances.
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

// Lock is held for one tick. Refresh extends it between jobs.
type Lock interface {
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

type redisLocker struct {
	client     *redislock.Client
	ttl        time.Duration
	instanceID string
}

// NewRedisLocker builds a Locker over redislock. The TTL must outlast one job
// plus an in-flight item; Tick refreshes it before every job.
func NewRedisLocker(client redislock.RedisClient, ttl time.Duration) Locker {
	return &redisLocker{
		client:     redislock.New(client),
		ttl:        ttl,
		instanceID: uuid.NewString(),
	}
}

func (l *redisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{Metadata: l.instanceID})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return &redisLock{lock: lock, ttl: l.ttl}, nil
}

type redisLock struct {
	lock *redislock.Lock
	ttl  time.Duration
}

func (l *redisLock) Refresh(ctx context.Context) error {
	err := l.lock.Refresh(ctx, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrLockHeld
	}
	return err
}

func (l *redisLock) Release(ctx context.Context) error {
	return l.lock.Release(ctx)
}

type RedisParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// ProvideRedisClient returns nil when no Redis address is configured.
func ProvideRedisClient(p RedisParams) *redis.Client {
	if !p.Config.Redis.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     p.Config.Redis.Addr,
		Password: p.Config.Redis.Password,
		DB:       p.Config.Redis.DB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				p.Log.Warn("redis ping failed; healing ticks will be skipped until it recovers", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

// ProvideLocker returns nil without Redis, leaving only the in-process guard.
func ProvideLocker(cfg config.Config, client *redis.Client) Locker {
	if client == nil {
		return nil
	}
	return NewRedisLocker(client, cfg.Redis.LockTTL)
}
