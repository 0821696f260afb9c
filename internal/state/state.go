package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager records when each cached resource was last rebuilt
type Manager interface {
	LastRefresh(ctx context.Context, resource string) (time.Time, error)
	MarkRefreshed(ctx context.Context, resource string, at time.Time) error
}

type redisManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisManager(redisClient *redis.Client) Manager {
	return &redisManager{
		redisClient: redisClient,
		keyPrefix:   "storefront:refresh:last:",
	}
}

func (s *redisManager) LastRefresh(ctx context.Context, resource string) (time.Time, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+resource).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil // never refreshed
		}
		return time.Time{}, fmt.Errorf("failed to get last refresh for %s: %w", resource, err)
	}

	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last refresh for %s: %w", resource, err)
	}

	return time.UnixMilli(millis).UTC(), nil
}

func (s *redisManager) MarkRefreshed(ctx context.Context, resource string, at time.Time) error {
	err := s.redisClient.Set(ctx, s.keyPrefix+resource, at.UnixMilli(), 0).Err()
	if err != nil {
		return fmt.Errorf("failed to mark %s refreshed: %w", resource, err)
	}
	return nil
}
