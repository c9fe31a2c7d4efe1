// Package cache stores rendered diagram artifacts keyed by content.
//
// A Cache is a byte store with optional expiry. The build pipeline looks up
// an artifact before invoking the renderer and stores the result after a
// successful render, so identical diagram sources are rendered once per
// cache lifetime:
//
//   - [NullCache] never stores anything (always-fresh renders)
//   - [MemoryCache] lives for a single build invocation
//   - [FileCache] persists artifacts across builds on local disk
//   - [RedisCache] is shared by build workers on different machines
//
// Keys are produced by a [Keyer] so that every option which changes the
// rendered output (theme, padding, renderer version) is part of the key.
package cache

import (
	"context"
	"time"
)

// TTLs for cached entries.
const (
	// TTLArtifact is how long a rendered diagram stays valid. Artifacts are
	// content-addressed so staleness only comes from renderer upgrades,
	// which are already part of the key.
	TTLArtifact = 30 * 24 * time.Hour

	// TTLNone stores an entry without expiry.
	TTLNone time.Duration = 0
)

// Cache is a key/value store for rendered artifacts.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored value and whether it was found.
	// A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// ArtifactKeyOpts are the render options that change an artifact's bytes.
type ArtifactKeyOpts struct {
	Renderer string `json:"renderer"` // renderer identity, e.g. "d2 v0.6.9"
	Theme    int    `json:"theme"`
	Pad      int    `json:"pad"`
	Format   string `json:"format"`
}

// Keyer generates cache keys.
type Keyer interface {
	// ArtifactKey returns the key for the artifact rendered from content
	// with the given content hash.
	ArtifactKey(contentHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes the content hash together with the render options.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(contentHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", contentHash, opts)
}

// ScopedKeyer wraps a Keyer with a prefix, so several sites can share one
// Redis instance without colliding:
//
//	keyer := cache.NewScopedKeyer(nil, "blog:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// If inner is nil, a DefaultKeyer is used.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ArtifactKey implements Keyer.
func (k *ScopedKeyer) ArtifactKey(contentHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(contentHash, opts)
}
