// Package redis provides the per-manifest mutual-exclusion lock the ticket
// engine holds across validation and write. Concurrent sales against the same
// manifest serialize here; the database transaction provides atomicity of the
// two writes, the lock provides the at-most-one-writer window.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "manifest_lock:"

type Lock struct {
	Client *redis.Client
	// TTL bounds how long a crashed holder can keep the manifest locked.
	TTL time.Duration
}

func NewLock(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{Client: client, TTL: ttl}
}

// Acquire takes the manifest lock and returns the owner token needed to
// release it. It retries briefly; if the lock stays held it returns
// ErrLockHeld rather than blocking.
func (l *Lock) Acquire(ctx context.Context, manifestID string) (string, error) {
	token := uuid.NewString()
	key := keyPrefix + manifestID

	for attempt := 0; attempt < 40; attempt++ {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return "", ErrLockHeld
}

// Release frees the lock only if token still owns it; a lock taken over after
// TTL expiry is left alone.
func (l *Lock) Release(ctx context.Context, manifestID, token string) error {
	key := keyPrefix + manifestID
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// ErrLockHeld means another sale holds the manifest; callers treat it as a
// retryable infrastructure condition, not a domain error.
var ErrLockHeld = lockHeldError{}

type lockHeldError struct{}

func (lockHeldError) Error() string { return "manifest lock held by another operation" }
