package config

import (
	"log"
	"time"

	"github.com/redis/rueidis"

	"operator-dispatch.com/operator-dispatch/internal/queue"
)

func NewRedisClient(addr string) rueidis.Client {
	redisClient, err := rueidis.NewClient(
		rueidis.ClientOption{
			InitAddress: []string{addr},
		},
	)
	if err != nil {
		log.Fatalf("failed to create redis client: %v", err)
	}

	return redisClient
}

// NewLocker builds the assignment lock for the configured backend. The
// returned close func releases the redis client, if any.
func NewLocker(cfg Config) (queue.Locker, func()) {
	wait := time.Duration(cfg.LockWaitSeconds) * time.Second

	if cfg.LockBackend != "redis" {
		return queue.NewMutexLocker(wait), func() {}
	}

	client := NewRedisClient(cfg.RedisAddr)
	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	log.Printf("assignment lock: redis %s key %s", cfg.RedisAddr, cfg.LockKey)
	return queue.NewRedisLocker(client, cfg.LockKey, ttl, wait), client.Close
}
