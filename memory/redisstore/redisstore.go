// Package redisstore persists conversations in Redis so sessions survive
// process restarts and can be shared across replicas. Keys expire after a
// configurable TTL; an idle session simply starts fresh.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/shopmesh/memory"
)

// DefaultTTL is how long an idle conversation is retained.
const DefaultTTL = time.Hour

// Options configure the Redis-backed store.
type Options struct {
	TTL time.Duration
}

// Store is a memory.Store backed by Redis.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New constructs a Store over an existing Redis client.
func New(client redis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{TTL: DefaultTTL}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, ttl: opts.TTL}
}

// NewFromAddr constructs a Store with its own single-node client.
func NewFromAddr(addr, password string, db int, optFns ...func(o *Options)) *Store {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return New(client, optFns...)
}

func key(userID, sessionID string) string {
	return fmt.Sprintf("conv:%s:%s", userID, sessionID)
}

// Load implements memory.Store.
func (s *Store) Load(ctx context.Context, userID, sessionID string) (memory.Conversation, bool, error) {
	raw, err := s.client.Get(ctx, key(userID, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return memory.Conversation{}, false, nil
	}
	if err != nil {
		return memory.Conversation{}, false, fmt.Errorf("redis get: %w", err)
	}

	var conv memory.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return memory.Conversation{}, false, fmt.Errorf("decode conversation: %w", err)
	}

	return conv, true, nil
}

// Save implements memory.Store. Each save refreshes the TTL, so active
// sessions never expire mid-conversation.
func (s *Store) Save(ctx context.Context, conv memory.Conversation) error {
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	if err := s.client.Set(ctx, key(conv.UserID, conv.SessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete implements memory.Store.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	if err := s.client.Del(ctx, key(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Ping verifies connectivity, used at startup to decide whether to fall back
// to the in-process store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
