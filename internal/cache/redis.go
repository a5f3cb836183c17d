// Package cache connects to Redis and ships the match action log to it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cowrow/cowrow/internal/game"
	"github.com/redis/go-redis/v9"
)

// DefaultActionsKey is the list the action feed appends to.
const DefaultActionsKey = "cowrow:actions"

// NewRedisClient connects and pings with a short timeout.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

type pusher interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// ActionFeed implements game.Recorder on a Redis list. Consumers pop
// records with BLPOP.
type ActionFeed struct {
	rdb pusher
	key string
}

// NewActionFeed appends to key, DefaultActionsKey when empty.
func NewActionFeed(rdb *redis.Client, key string) *ActionFeed {
	if key == "" {
		key = DefaultActionsKey
	}
	return &ActionFeed{rdb: rdb, key: key}
}

// RecordAction implements game.Recorder.
func (f *ActionFeed) RecordAction(ctx context.Context, rec game.ActionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action %d: %w", rec.ActionIndex, err)
	}
	if err := f.rdb.RPush(ctx, f.key, b).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", f.key, err)
	}
	return nil
}
