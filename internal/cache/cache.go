// Package cache provides a cache abstraction for storing extracted document text.
// Supports both local (in-memory) and Redis backends for multi-instance deployments.
package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Cache defines the interface for extraction cache storage.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves the text stored under key.
	// Returns "", false, nil if nothing is cached.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores text under key.
	Set(ctx context.Context, key, text string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Key derives the cache key of a file's content for the given extraction kind.
// Identical bytes extracted by different parsers never share an entry.
func Key(kind string, data []byte) string {
	return kind + ":" + strconv.FormatUint(xxhash.Sum64(data), 16) + ":" + strconv.Itoa(len(data))
}

// Noop is a Cache that stores nothing.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Noop) Set(context.Context, string, string) error         { return nil }
func (Noop) Close() error                                      { return nil }

// Config selects and configures a cache backend.
type Config struct {
	Type  string // "none", "local" or "redis"
	Redis RedisConfig
	Local LocalConfig
}

// New creates the cache selected by cfg.Type.
func New(cfg Config) (Cache, error) {
	switch cfg.Type {
	case "", "none":
		return Noop{}, nil
	case "local":
		return NewLocalCache(cfg.Local), nil
	case "redis":
		return NewRedisCache(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
