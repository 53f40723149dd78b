// Package redis serialises reconciliations of one session across instances
// and remembers which processor events were already handled.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-checkout/internal/logger"
)

const (
	lockPrefix  = "reconcile_lock:"
	eventPrefix = "stripe_event:"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	Client    *redis.Client
	LockTTL   time.Duration
	EventTTL  time.Duration
	RetryWait time.Duration
	MaxWait   time.Duration
	log       *logger.Logger
}

func NewLocker(client *redis.Client, lockTTL, eventTTL time.Duration, log *logger.Logger) *Locker {
	return &Locker{
		Client:    client,
		LockTTL:   lockTTL,
		EventTTL:  eventTTL,
		RetryWait: 200 * time.Millisecond,
		MaxWait:   5 * time.Second,
		log:       log,
	}
}

// Acquire takes the session lock, retrying until MaxWait. When acquired is
// false the lock is held elsewhere and release is a no-op.
func (l *Locker) Acquire(ctx context.Context, sessionID string) (release func(), acquired bool, err error) {
	key := lockPrefix + sessionID
	token := uuid.NewString()
	deadline := time.Now().Add(l.MaxWait)

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.LockTTL).Result()
		if err != nil {
			return func() {}, false, fmt.Errorf("acquire reconcile lock: %w", err)
		}
		if ok {
			return func() { l.release(key, token) }, true, nil
		}
		if time.Now().After(deadline) {
			l.log.Warn("REDIS", fmt.Sprintf("Reconcile lock for %s still held after %s", sessionID, l.MaxWait))
			return func() {}, false, nil
		}

		select {
		case <-ctx.Done():
			return func() {}, false, ctx.Err()
		case <-time.After(l.RetryWait):
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.Client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.log.Warn("REDIS", fmt.Sprintf("Failed to release %s: %v", key, err))
	}
}

// MarkEventProcessed records an event id and reports whether this is the
// first time it was seen.
func (l *Locker) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	return l.Client.SetNX(ctx, eventPrefix+eventID, time.Now().UTC().Format(time.RFC3339), l.EventTTL).Result()
}

// ForgetEvent undoes MarkEventProcessed so a redelivery is handled again.
func (l *Locker) ForgetEvent(ctx context.Context, eventID string) error {
	return l.Client.Del(ctx, eventPrefix+eventID).Err()
}
