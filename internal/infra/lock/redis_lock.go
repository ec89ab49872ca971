// Package lock serializa syncs da mesma conexão entre réplicas via Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

const keyPrefix = "lock:"

type RedisLocker struct {
	rdb    *redis.Client
	locker *redislock.Client
	ttl    time.Duration
}

func NewRedisLocker(addr string, ttl time.Duration) *RedisLocker {
	return NewRedisLockerWithClient(redis.NewClient(&redis.Options{Addr: addr}), ttl)
}

func NewRedisLockerWithClient(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{rdb: rdb, locker: redislock.New(rdb), ttl: ttl}
}

// Acquire não espera: se outra réplica segura a chave devolve
// entity.ErrLockNotObtained na hora.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lk, err := l.locker.Obtain(ctx, keyPrefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, entity.ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao obter lock %s: %w", key, err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.LogError(logger.Get(), "lock", "RedisLocker.release", "falha ao liberar lock", key, err)
		}
	}, nil
}

func (l *RedisLocker) PingContext(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}
