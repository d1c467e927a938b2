package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kumanday/OmniLearn/internal/domain"
)

const keyPrefix = "omnilearn:lesson:subsection:"

// LessonCache implements repository.LessonCache using Redis.
type LessonCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLessonCache creates a Redis-backed lesson cache whose entries expire
// after ttl.
func NewLessonCache(client *redis.Client, ttl time.Duration) *LessonCache {
	return &LessonCache{
		client: client,
		ttl:    ttl,
	}
}

func key(subsectionID string) string {
	return keyPrefix + subsectionID
}

// Get returns the cached lesson of a subsection, or nil on a miss.
func (c *LessonCache) Get(ctx context.Context, subsectionID string) (*domain.Lesson, error) {
	data, err := c.client.Get(ctx, key(subsectionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get lesson: %w", err)
	}

	var lesson domain.Lesson
	if err := json.Unmarshal(data, &lesson); err != nil {
		return nil, fmt.Errorf("unmarshal lesson: %w", err)
	}
	return &lesson, nil
}

// Set stores lesson under its subsection ID with the configured TTL.
func (c *LessonCache) Set(ctx context.Context, lesson *domain.Lesson) error {
	data, err := json.Marshal(lesson)
	if err != nil {
		return fmt.Errorf("marshal lesson: %w", err)
	}

	if err := c.client.Set(ctx, key(lesson.SubsectionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set lesson: %w", err)
	}
	return nil
}

// Delete evicts the cached lesson of a subsection.
func (c *LessonCache) Delete(ctx context.Context, subsectionID string) error {
	if err := c.client.Del(ctx, key(subsectionID)).Err(); err != nil {
		return fmt.Errorf("redis del lesson: %w", err)
	}
	return nil
}
