package depot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "depot:session:"

// Store keeps tracker state per admin session.
type Store interface {
	Load(ctx context.Context, session string) (State, error)
	Save(ctx context.Context, session string, state State) error
	Delete(ctx context.Context, session string) error
}

// RedisStore persists State as JSON with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs the store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func key(session string) string {
	return keyPrefix + session
}

// Load returns the saved state, or an empty one when the session has none.
func (s *RedisStore) Load(ctx context.Context, session string) (State, error) {
	payload, err := s.client.Get(ctx, key(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{Counts: make(map[int64]int)}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("depot: load session: %w", err)
	}
	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, fmt.Errorf("depot: decode session: %w", err)
	}
	if state.Counts == nil {
		state.Counts = make(map[int64]int)
	}
	return state, nil
}

// Save writes state and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, session string, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("depot: encode session: %w", err)
	}
	if err := s.client.Set(ctx, key(session), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("depot: save session: %w", err)
	}
	return nil
}

// Delete drops the session state.
func (s *RedisStore) Delete(ctx context.Context, session string) error {
	if err := s.client.Del(ctx, key(session)).Err(); err != nil {
		return fmt.Errorf("depot: delete session: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
