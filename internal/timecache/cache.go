// Package timecache accumulates active assessment time per (user, assessment,
// attempt) in Redis.
package timecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
)

// TTL applies from the last read or write of a key.
const TTL = 7 * 24 * time.Hour

var ErrInvalidDelta = errors.New("timecache: delta must be a non-negative number")

type State struct {
	CumulativeActiveSeconds float64    `json:"cumulativeActiveSeconds" validate:"gte=0"`
	LastServerSyncAt        *time.Time `json:"lastServerSyncAt"`
}

type Key struct {
	UserID       string `validate:"required"`
	AssessmentID string `validate:"required"`
	Attempt      int    `validate:"gte=1"`
}

func (k Key) String() string {
	return fmt.Sprintf("assessment:time:%s:%s:%d", k.UserID, k.AssessmentID, k.Attempt)
}

type Cache struct {
	rdb      redis.Cmdable
	ttl      time.Duration
	validate *validator.Validate
}

func New(rdb redis.Cmdable) *Cache {
	return &Cache{rdb: rdb, ttl: TTL, validate: validator.New()}
}

// Get returns the stored state, or the zero state when none exists, and
// refreshes the key's TTL.
func (c *Cache) Get(ctx context.Context, k Key) (State, error) {
	if err := c.validate.Struct(k); err != nil {
		return State{}, fmt.Errorf("timecache: key: %w", err)
	}
	key := k.String()
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("timecache: get %s: %w", key, err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("timecache: decode %s: %w", key, err)
	}
	if err := c.validate.Struct(st); err != nil {
		return State{}, fmt.Errorf("timecache: stored state %s: %w", key, err)
	}
	if err := c.rdb.Expire(ctx, key, c.ttl).Err(); err != nil {
		return State{}, fmt.Errorf("timecache: refresh ttl %s: %w", key, err)
	}
	return st, nil
}

// Set validates and replaces the full state.
func (c *Cache) Set(ctx context.Context, k Key, st State) error {
	if err := c.validate.Struct(k); err != nil {
		return fmt.Errorf("timecache: key: %w", err)
	}
	if err := c.validate.Struct(st); err != nil {
		return fmt.Errorf("timecache: state: %w", err)
	}
	if st.LastServerSyncAt != nil {
		t := st.LastServerSyncAt.UTC()
		st.LastServerSyncAt = &t
	}
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("timecache: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, k.String(), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("timecache: set %s: %w", k, err)
	}
	return nil
}

// Accumulate adds deltaSeconds of active time and stamps the sync time.
func (c *Cache) Accumulate(ctx context.Context, k Key, deltaSeconds float64, now time.Time) (State, error) {
	if deltaSeconds < 0 || math.IsNaN(deltaSeconds) || math.IsInf(deltaSeconds, 0) {
		return State{}, ErrInvalidDelta
	}
	st, err := c.Get(ctx, k)
	if err != nil {
		return State{}, err
	}
	st.CumulativeActiveSeconds += deltaSeconds
	t := now.UTC()
	st.LastServerSyncAt = &t
	if err := c.Set(ctx, k, st); err != nil {
		return State{}, err
	}
	return st, nil
}
