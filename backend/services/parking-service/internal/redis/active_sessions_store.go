package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store caches the open session id per license plate.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(plate string) string {
	return fmt.Sprintf("parking:sessions:open:%s", plate)
}

// Save caches session id for plate.
func (s *Store) Save(ctx context.Context, plate, sessionID string) error {
	return s.client.Set(ctx, s.key(plate), sessionID, s.ttl).Err()
}

// Lookup returns the cached session id, ok=false on a miss.
func (s *Store) Lookup(ctx context.Context, plate string) (string, bool, error) {
	id, err := s.client.Get(ctx, s.key(plate)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Delete removes cached entry.
func (s *Store) Delete(ctx context.Context, plate string) error {
	return s.client.Del(ctx, s.key(plate)).Err()
}
