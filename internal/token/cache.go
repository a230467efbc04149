package token

import (
	"time"

	"ai-core-platform/security/internal/platform/shardmap"
)

// ValidationCache memoizes successful validations keyed by the raw compact
// token. An entry is served only while younger than the freshness window;
// the window is the maximum time a revoked-but-cached token can still be
// accepted, so it must stay within the platform's acceptable
// revocation-propagation latency. Entries age out by their own staleness,
// never by the token's lifetime.
type ValidationCache struct {
	window  time.Duration
	entries *shardmap.Map[*cacheEntry]
}

type cacheEntry struct {
	result   *ValidationResult
	cachedAt time.Time
}

// DefaultFreshnessWindow bounds how long a cached validation may be reused.
const DefaultFreshnessWindow = time.Minute

// NewValidationCache returns a cache with the given freshness window; values
// of zero or below fall back to DefaultFreshnessWindow.
func NewValidationCache(window time.Duration) *ValidationCache {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &ValidationCache{
		window:  window,
		entries: shardmap.New[*cacheEntry](),
	}
}

// Get returns the cached result for rawToken when one exists and is still
// fresh. Stale entries report a miss and are dropped.
func (c *ValidationCache) Get(rawToken string) (*ValidationResult, bool) {
	e, ok := c.entries.Load(rawToken)
	if !ok {
		return nil, false
	}
	if time.Since(e.cachedAt) >= c.window {
		c.entries.Delete(rawToken)
		return nil, false
	}
	return e.result, true
}

// Put stores the result for rawToken, overwriting unconditionally. Racing
// writers derive their results from the same immutable claims, so
// last-write-wins is fine.
func (c *ValidationCache) Put(rawToken string, result *ValidationResult) {
	c.entries.Store(rawToken, &cacheEntry{result: result, cachedAt: time.Now()})
}

// CleanupExpired drops every entry older than the freshness window and
// returns the number removed.
func (c *ValidationCache) CleanupExpired() int {
	now := time.Now()
	return c.entries.DeleteIf(func(_ string, e *cacheEntry) bool {
		return now.Sub(e.cachedAt) >= c.window
	})
}

// Len returns the number of cached entries, fresh or not.
func (c *ValidationCache) Len() int {
	return c.entries.Len()
}
