package terminal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dErrors "kiosk/pkg/domain-errors"
)

// Locker grants exclusive use of a terminal across API replicas. The release
// func is safe to call once the lock has expired.
type Locker interface {
	Acquire(ctx context.Context, deviceID string) (release func(), err error)
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds a SET NX PX key per terminal.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func lockKey(deviceID string) string { return "kiosk:terminal:" + deviceID + ":lock" }

func (l *RedisLocker) Acquire(ctx context.Context, deviceID string) (func(), error) {
	key := lockKey(deviceID)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock terminal")
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeTerminalBusy, "terminal is busy, please wait")
	}
	return func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}, nil
}
