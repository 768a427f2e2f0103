package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

// Locker guards the reservation ledger's check-then-create critical section
// per exact slot.
type Locker interface {
	WithSlotLock(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker keyed by the (eventType, start, end)
// slot triple.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

func slotLockKey(eventTypeID int64, slotStart, slotEnd time.Time) string {
	return fmt.Sprintf("lock:slot:%d:%d:%d", eventTypeID, slotStart.UTC().Unix(), slotEnd.UTC().Unix())
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, eventTypeID int64, slotStart, slotEnd time.Time, fn func(ctx context.Context) error) error {
	key := slotLockKey(eventTypeID, slotStart, slotEnd)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// Unlock only deletes the key when the token still matches, so a lock that
// expired and was re-acquired by another process is left alone.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
