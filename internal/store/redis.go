package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds the client backing the audit queue. Nil when the queue
// runs on the in-memory backend.
type Redis struct {
	Client *redis.Client
}

// NewRedis dials the audit broker. Timeouts are short so a dead broker
// surfaces in the health probe instead of hanging requests.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy pings the broker. A nil receiver reports unhealthy rather
// than panicking so callers can probe unconditionally.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}
