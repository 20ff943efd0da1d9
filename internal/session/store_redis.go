package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseLease deletes the lease key only while it still names the caller,
// so an expired-and-retaken lease is never dropped by its previous owner.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps sessions in Redis so a client can resume after a
// disconnect or a restart of the daemon.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "qbank:"}
}

func (r *RedisStore) sessionKey(id string) string { return r.prefix + "session:" + id }

func (r *RedisStore) leaseKey(id string) string { return r.prefix + "lease:" + id }

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, r.sessionKey(s.ID), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis put session %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Acquire(ctx context.Context, id, holder string, ttl time.Duration) error {
	ok, err := r.client.SetNX(ctx, r.leaseKey(id), holder, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis acquire lease %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrLeaseHeld)
	}
	return nil
}

func (r *RedisStore) Release(ctx context.Context, id, holder string) error {
	if err := releaseLease.Run(ctx, r.client, []string{r.leaseKey(id)}, holder).Err(); err != nil {
		return fmt.Errorf("redis release lease %s: %w", id, err)
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
