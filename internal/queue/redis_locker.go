package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
)

const redisLockRetryInterval = 25 * time.Millisecond

// releaseScript deletes the lock key only while it still holds our token, so
// a holder whose TTL expired cannot release somebody else's lock.
var releaseScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance pointed at the same Redis.
type RedisLocker struct {
	client rueidis.Client
	key    string
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(client rueidis.Client, key string, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		key:    key,
		ttl:    ttl,
		wait:   wait,
	}
}

func (r *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		cmd := r.client.B().Set().Key(r.key).Value(token).Nx().PxMilliseconds(r.ttl.Milliseconds()).Build()
		err := r.client.Do(ctx, cmd).Error()
		if err == nil {
			var once sync.Once
			return func() {
				once.Do(func() { r.release(token) })
			}, nil
		}
		if !rueidis.IsRedisNil(err) {
			return nil, err
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisLockRetryInterval):
		}
	}
}

func (r *RedisLocker) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Exec(ctx, r.client, []string{r.key}, []string{token}).Error(); err != nil {
		log.Printf("locker: failed to release redis lock %s: %v", r.key, err)
	}
}
