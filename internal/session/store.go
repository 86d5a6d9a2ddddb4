package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finevents/apiserver/types"
	"github.com/redis/go-redis/v9"
)

// ErrTeardown is returned when a session could not be destroyed server-side.
var ErrTeardown = errors.New("session teardown failed")

// payload is the identity bound to a session, stored as JSON.
type payload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RedisStore maps opaque session ids to identities. Every operation is a
// single-key Redis command and therefore atomic.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "finevents"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Put creates or overwrites the identity bound to sessionID.
func (s *RedisStore) Put(ctx context.Context, sessionID string, identity types.Identity) error {
	data, err := json.Marshal(payload{ID: identity.UserID, Username: identity.Username})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Get returns the bound identity. found is false when the session does not
// exist or has expired.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (types.Identity, bool, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Identity{}, false, nil
	} else if err != nil {
		return types.Identity{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" {
		// A corrupt entry can never authenticate anyone.
		s.client.Del(ctx, s.key(sessionID))
		return types.Identity{}, false, nil
	}
	return types.Identity{UserID: p.ID, Username: p.Username}, true, nil
}

// Destroy removes the session. Destroying a missing session succeeds.
func (s *RedisStore) Destroy(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTeardown, err)
	}
	return nil
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":session:" + sessionID
}
