// Package cache provides the two-tier lookup cache used in front of the
// external collaborators: an expiring in-memory LRU backed by an optional
// redis tier shared between processes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/genomic-case-qc/internal/domain"
)

// Remote is the shared second tier.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Stats counts cache traffic per tier.
type Stats struct {
	MemoryHits   int64 `json:"memory_hits"`
	MemoryMisses int64 `json:"memory_misses"`
	RemoteHits   int64 `json:"remote_hits"`
	RemoteMisses int64 `json:"remote_misses"`
	RemoteErrors int64 `json:"remote_errors"`
}

// Tiered is safe for concurrent use.
type Tiered struct {
	memory *expirable.LRU[string, []byte]
	remote Remote
	ttl    time.Duration
	logger *logrus.Logger

	memoryHits, memoryMisses             atomic.Int64
	remoteHits, remoteMisses, remoteErrs atomic.Int64
}

// New creates a cache from config. A redis tier is attached when a redis URL
// is configured and reachable.
func New(ctx context.Context, config domain.CacheConfig, logger *logrus.Logger) (*Tiered, error) {
	var remote Remote
	if config.RedisURL != "" {
		r, err := NewRedis(ctx, config.RedisURL)
		if err != nil {
			return nil, err
		}
		remote = r
	}
	return NewTiered(config.MemoryItems, config.TTL, remote, logger), nil
}

// NewTiered creates a cache holding up to size entries in memory. remote may be nil.
func NewTiered(size int, ttl time.Duration, remote Remote, logger *logrus.Logger) *Tiered {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tiered{
		memory: expirable.NewLRU[string, []byte](size, nil, ttl),
		remote: remote,
		ttl:    ttl,
		logger: logger,
	}
}

// Get looks in memory first, then in the remote tier. A remote hit is
// copied into memory.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := t.memory.Get(key); ok {
		t.memoryHits.Add(1)
		return v, true
	}
	t.memoryMisses.Add(1)

	if t.remote == nil {
		return nil, false
	}
	v, ok, err := t.remote.Get(ctx, key)
	if err != nil {
		t.remoteErrs.Add(1)
		t.logger.WithError(err).WithField("key", key).Debug("Remote cache read failed")
		return nil, false
	}
	if !ok {
		t.remoteMisses.Add(1)
		return nil, false
	}
	t.remoteHits.Add(1)
	t.memory.Add(key, v)
	return v, true
}

// Set stores value in both tiers. A remote failure is logged only.
func (t *Tiered) Set(ctx context.Context, key string, value []byte) {
	t.memory.Add(key, value)
	if t.remote == nil {
		return
	}
	if err := t.remote.Set(ctx, key, value, t.ttl); err != nil {
		t.remoteErrs.Add(1)
		t.logger.WithError(err).WithField("key", key).Debug("Remote cache write failed")
	}
}

// Stats returns a snapshot of the counters.
func (t *Tiered) Stats() Stats {
	return Stats{
		MemoryHits:   t.memoryHits.Load(),
		MemoryMisses: t.memoryMisses.Load(),
		RemoteHits:   t.remoteHits.Load(),
		RemoteMisses: t.remoteMisses.Load(),
		RemoteErrors: t.remoteErrs.Load(),
	}
}

// Close releases the remote tier.
func (t *Tiered) Close() error {
	t.memory.Purge()
	if t.remote == nil {
		return nil
	}
	return t.remote.Close()
}

// Redis is the redis-backed remote tier.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to url and checks the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, prefix: "caseqc:"}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
