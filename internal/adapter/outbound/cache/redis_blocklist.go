// Package cache adapts the IP blocklist port to a Redis-backed bitmap.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wl4g-collab/botwaf-go/internal/domain/blocklist"
)

// RedisConfig configures the shared Redis connection backing the blocklist
// bitmap (§6 cache.redis).
type RedisConfig struct {
	Nodes              []string
	Username           string
	Password           string
	ConnectionTimeout  time.Duration
	ResponseTimeout    time.Duration
	Retries            int
	MaxRetryWait       time.Duration
	MinRetryWait       time.Duration
	ReadFromReplicas   bool
}

// RedisBlockList implements blocklist.BlockList as a single SETBIT/GETBIT
// bitmap at a fixed key: one bit per IP address offset (§3 BlockList, §6).
type RedisBlockList struct {
	client *redis.Client
	key    string
}

// NewRedisBlockList dials a Redis client (single-node or first-of-Nodes;
// this module deliberately targets a single logical cache tier, matching
// the original's `StringRedisCache` which is not cluster-aware) and returns
// a BlockList backed by the given bitmap key.
func NewRedisBlockList(cfg RedisConfig, key string) (*RedisBlockList, error) {
	if len(cfg.Nodes) == 0 {
		return nil, errors.New("cache: at least one redis node is required")
	}
	if key == "" {
		key = "botwaf:ip_blacklist"
	}

	opts := &redis.Options{
		Addr:            cfg.Nodes[0],
		Username:        cfg.Username,
		Password:        cfg.Password,
		DialTimeout:     cfg.ConnectionTimeout,
		ReadTimeout:     cfg.ResponseTimeout,
		WriteTimeout:    cfg.ResponseTimeout,
		MaxRetries:      cfg.Retries,
		MaxRetryBackoff: cfg.MaxRetryWait,
		MinRetryBackoff: cfg.MinRetryWait,
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}

	return &RedisBlockList{client: client, key: key}, nil
}

// NewRedisBlockListFromClient wraps an already-constructed client, primarily
// for tests that point a *redis.Client at a miniredis instance.
func NewRedisBlockListFromClient(client *redis.Client, key string) *RedisBlockList {
	if key == "" {
		key = "botwaf:ip_blacklist"
	}
	return &RedisBlockList{client: client, key: key}
}

var _ blocklist.BlockList = (*RedisBlockList)(nil)

func (r *RedisBlockList) IsBlocked(ctx context.Context, ip string) (bool, error) {
	offset, err := blocklist.ParseOffset(ip)
	if err != nil {
		return false, err
	}
	n, err := r.client.GetBit(ctx, r.key, int64(offset)).Result()
	if err != nil {
		return false, fmt.Errorf("cache: redis getbit: %w", err)
	}
	return n == 1, nil
}

func (r *RedisBlockList) Block(ctx context.Context, ip string) (bool, error) {
	return r.setBit(ctx, ip, 1)
}

func (r *RedisBlockList) Unblock(ctx context.Context, ip string) (bool, error) {
	return r.setBit(ctx, ip, 0)
}

func (r *RedisBlockList) setBit(ctx context.Context, ip string, value int) (bool, error) {
	offset, err := blocklist.ParseOffset(ip)
	if err != nil {
		return false, err
	}
	prior, err := r.client.SetBit(ctx, r.key, int64(offset), value).Result()
	if err != nil {
		return false, fmt.Errorf("cache: redis setbit: %w", err)
	}
	return prior == 1, nil
}

// Close releases the underlying Redis connection.
func (r *RedisBlockList) Close() error {
	return r.client.Close()
}
