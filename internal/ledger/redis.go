package ledger

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes.
const (
	keySeen      = "seen:"
	keyDelivered = "delivered:"
)

// Redis is a Ledger backed by Redis, so dedup and delivery records survive a
// process restart. Falls back to an in-memory ledger when Redis errors,
// trading restart durability for availability.
type Redis struct {
	client    *redis.Client
	retention time.Duration
	fallback  *Memory
}

// NewRedis creates a Redis-backed ledger.
func NewRedis(client *redis.Client, retention time.Duration) *Redis {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Redis{
		client:    client,
		retention: retention,
		fallback:  NewMemory(retention),
	}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Redis) MarkSeen(ctx context.Context, messageID string) bool {
	ok, err := r.client.SetNX(ctx, keySeen+messageID, 1, r.retention).Result()
	if err != nil {
		log.Printf("[Ledger] Redis mark-seen failed (%s): %v", messageID, err)
		return r.fallback.MarkSeen(ctx, messageID)
	}
	return ok
}

func (r *Redis) MarkDelivered(ctx context.Context, messageID string) {
	if err := r.client.Set(ctx, keyDelivered+messageID, 1, r.retention).Err(); err != nil {
		log.Printf("[Ledger] Redis mark-delivered failed (%s): %v", messageID, err)
		r.fallback.MarkDelivered(ctx, messageID)
	}
}

func (r *Redis) Delivered(ctx context.Context, messageID string) bool {
	n, err := r.client.Exists(ctx, keyDelivered+messageID).Result()
	if err != nil {
		log.Printf("[Ledger] Redis delivered-check failed (%s): %v", messageID, err)
		return r.fallback.Delivered(ctx, messageID)
	}
	return n > 0
}
