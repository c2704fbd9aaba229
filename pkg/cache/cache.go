// Package cache stores fusion results keyed by a content hash of the input
// graph and every setting that influences the pass.
//
// Backends: [FileCache] for the CLI, [RedisCache] for a cache shared
// between service replicas, and [NullCache] when caching is disabled. All
// store opaque bytes with an optional TTL.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with expiry.
type Cache interface {
	// Get returns the value and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// FusionKey returns the key of a fusion result for the graph with the
	// given content hash.
	FusionKey(graphHash string, opts FusionKeyOpts) string
}

// FusionKeyOpts lists everything besides the graph that changes a result.
type FusionKeyOpts struct {
	Policy string `json:"policy"`
	Config any    `json:"config"`
}

// DefaultKeyer produces keys of the form "fusion:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) FusionKey(graphHash string, opts FusionKeyOpts) string {
	return hashKey("fusion", graphHash, opts)
}
