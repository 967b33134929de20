package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const emailLockPrefix = "registration:email:"

// releaseScript deletes the key only while it still holds our owner value,
// so an expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// EmailLock serializes registrations per email address using SET NX PX.
type EmailLock struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewEmailLock builds a lock whose entries expire after ttl.
func NewEmailLock(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *EmailLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailLock{client: client, ttl: ttl, logger: logger}
}

// TryLock attempts to take the lock for email without waiting. When acquired
// is true the caller must invoke release once done.
func (l *EmailLock) TryLock(ctx context.Context, email string) (func(), bool, error) {
	key := lockKey(email)
	owner := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// release runs after the request may have been canceled
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisDialTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{key}, owner).Err(); err != nil {
			l.logger.Warn("release registration lock", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}

// Email comparison is exact elsewhere; keys only strip surrounding space.
func lockKey(email string) string {
	return emailLockPrefix + strings.TrimSpace(email)
}
