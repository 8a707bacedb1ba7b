package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check to ensure redisStoryLock implements StoryLocker
var _ StoryLocker = (*redisStoryLock)(nil)

// redisStoryLock - блокировка генерации per-story на Redis (SETNX + TTL).
// Две параллельные генерации одной истории читали бы одну и ту же последнюю
// страницу и обе вставили бы страницу N+1; блокировка отсекает вторую на входе.
// TTL страхует от вечной блокировки при падении процесса до Release.
type redisStoryLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisStoryLock(client *redis.Client, ttl time.Duration, logger *zap.Logger) StoryLocker {
	return &redisStoryLock{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisStoryLock"),
	}
}

func lockKey(storyID uuid.UUID) string {
	return fmt.Sprintf("story_generation_lock:%s", storyID.String())
}

// Acquire пытается захватить блокировку. false - уже занята кем-то другим.
func (l *redisStoryLock) Acquire(ctx context.Context, storyID uuid.UUID) (bool, error) {
	key := lockKey(storyID)
	ok, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		l.logger.Error("Failed to acquire story lock", zap.Error(err), zap.String("storyID", storyID.String()))
		return false, fmt.Errorf("ошибка захвата блокировки истории %s: %w", storyID, err)
	}
	if !ok {
		l.logger.Warn("Story lock already held", zap.String("storyID", storyID.String()))
		return false, nil
	}
	l.logger.Debug("Story lock acquired", zap.String("storyID", storyID.String()), zap.Duration("ttl", l.ttl))
	return true, nil
}

// Release снимает блокировку.
func (l *redisStoryLock) Release(ctx context.Context, storyID uuid.UUID) error {
	key := lockKey(storyID)
	if err := l.client.Del(ctx, key).Err(); err != nil {
		l.logger.Error("Failed to release story lock", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("ошибка освобождения блокировки истории %s: %w", storyID, err)
	}
	l.logger.Debug("Story lock released", zap.String("storyID", storyID.String()))
	return nil
}
