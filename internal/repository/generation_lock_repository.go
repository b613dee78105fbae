package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another instance owns the generation lock.
var ErrLockHeld = errors.New("generation lock held by another instance")

const generationLockKey = "timetable:generation:lock"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// GenerationLockRepository guards timetable generation across instances with
// a Redis key holding a per-run token.
type GenerationLockRepository struct {
	client *redis.Client
}

// NewGenerationLockRepository builds the lock. A nil client makes every
// acquisition succeed locally.
func NewGenerationLockRepository(client *redis.Client) *GenerationLockRepository {
	return &GenerationLockRepository{client: client}
}

// Acquire takes the lock for ttl and returns the token needed to release it.
func (r *GenerationLockRepository) Acquire(ctx context.Context, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if r.client == nil {
		return token, nil
	}
	ok, err := r.client.SetNX(ctx, generationLockKey, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis acquire generation lock: %w", err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// Release drops the lock only when it still carries token.
func (r *GenerationLockRepository) Release(ctx context.Context, token string) error {
	if r.client == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, r.client, []string{generationLockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release generation lock: %w", err)
	}
	return nil
}
