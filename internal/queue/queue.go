// Package queue provides the blocking job-queue abstraction the dispatcher
// pops from, backed by Redis the way the original worker's BRPOP loop is.
package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Queue is a blocking FIFO pop — narrow on purpose, since the dispatcher
// never needs anything else from its job source.
type Queue interface {
	Pop(ctx context.Context, name string) ([]byte, error)
}

// Redis backs Queue with a BRPOP against a single list key per queue name,
// matching the original's `redis://{host}:{port}` + `brpop("jobs", 0)`
// pattern — one blocking pop, no local buffering.
type Redis struct {
	client *redis.Client
}

// NewRedis dials addr (host:port) with no auth, the same bare connection
// the Rust worker opens.
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Pop blocks (respecting ctx) until an item is available on name, then
// returns its raw payload.
func (r *Redis) Pop(ctx context.Context, name string) ([]byte, error) {
	result, err := r.client.BRPop(ctx, 0, name).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: brpop %s: %w", name, err)
	}
	// BRPop returns [key, value]; we only ever ask for one key.
	if len(result) < 2 {
		return nil, fmt.Errorf("queue: brpop %s: unexpected reply shape", name)
	}
	return []byte(result[1]), nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
