// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about fusion passes, cache operations, and
// HTTP requests served by the API.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetFusionHooks(&myFusionHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Fusion().OnPassStart(ctx, passID, nodeCount)
//	// ... run rounds ...
//	observability.Fusion().OnPassComplete(ctx, passID, rounds, fusions, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Fusion Hooks
// =============================================================================

// FusionHooks receives events from the fusion solver.
type FusionHooks interface {
	// OnPassStart is called once per pass before the first round.
	OnPassStart(ctx context.Context, passID string, nodeCount int)

	// OnRoundComplete is called after each round with the number of pairs
	// committed and the node count after the round.
	OnRoundComplete(ctx context.Context, passID string, round, fused, nodeCount int, duration time.Duration)

	// OnPairRejected is called when a candidate pair is excluded.
	OnPairRejected(ctx context.Context, passID string, reason string)

	// OnPassComplete is called once per pass, including failed passes.
	OnPassComplete(ctx context.Context, passID string, rounds, fusions int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, key string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, key string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, key string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP server.
type HTTPHooks interface {
	// OnRequest records an incoming HTTP request.
	OnRequest(ctx context.Context, method, path, requestID string)

	// OnResponse records the response written for a request.
	OnResponse(ctx context.Context, method, path, requestID string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopFusionHooks is a no-op implementation of FusionHooks.
type NoopFusionHooks struct{}

func (NoopFusionHooks) OnPassStart(context.Context, string, int) {}
func (NoopFusionHooks) OnRoundComplete(context.Context, string, int, int, int, time.Duration) {
}
func (NoopFusionHooks) OnPairRejected(context.Context, string, string) {}
func (NoopFusionHooks) OnPassComplete(context.Context, string, int, int, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string) {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {
}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	fusionHooks FusionHooks = NoopFusionHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	httpHooks   HTTPHooks   = NoopHTTPHooks{}
	hooksMu     sync.RWMutex
)

// SetFusionHooks registers custom fusion hooks.
// This should be called once at application startup before any pass runs.
func SetFusionHooks(h FusionHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		fusionHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before serving.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Fusion returns the registered fusion hooks.
func Fusion() FusionHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return fusionHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	fusionHooks = NoopFusionHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
