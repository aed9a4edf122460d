package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civicpulse/civicpulse/internal/cohort"
	"github.com/civicpulse/civicpulse/pkg/platform/sentinel"
)

const cohortKeyPrefix = "cohort:"

// Redis is a Redis-backed cohort store for deployments where several
// instances must resolve the same cohort ids.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithTTL bounds how long a saved cohort stays resolvable. Zero means no
// expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// NewRedis constructs a Redis-backed cohort store.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func cohortKey(id string) string { return cohortKeyPrefix + id }

// Save stores a cohort as JSON, rejecting duplicate ids via SETNX.
func (r *Redis) Save(ctx context.Context, c cohort.Cohort) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cohort: %w", err)
	}
	ok, err := r.client.SetNX(ctx, cohortKey(c.ID), payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("save cohort: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

// Get returns a cohort by id.
func (r *Redis) Get(ctx context.Context, id string) (cohort.Cohort, error) {
	payload, err := r.client.Get(ctx, cohortKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cohort.Cohort{}, sentinel.ErrNotFound
		}
		return cohort.Cohort{}, fmt.Errorf("get cohort: %w", err)
	}
	var c cohort.Cohort
	if err := json.Unmarshal(payload, &c); err != nil {
		return cohort.Cohort{}, fmt.Errorf("decode cohort: %w", err)
	}
	return c, nil
}

// Delete removes a cohort by id.
func (r *Redis) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, cohortKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete cohort: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
