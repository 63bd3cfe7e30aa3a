package worker

import (
	"context"
	"sync"
	"time"
)

const baselineCacheTTL = 24 * time.Hour

// BaselineResult is the cached outcome of running the project's typecheck
// command on trunk at a given commit.
type BaselineResult struct {
	Passed    bool
	Output    string
	CheckedAt time.Time
}

// BaselineCache memoizes baseline verification by trunk commit id for
// baselineCacheTTL, so repeated tasks against the same trunk state don't
// re-run the typecheck command.
type BaselineCache struct {
	mu      sync.Mutex
	entries map[string]BaselineResult
}

// NewBaselineCache constructs an empty cache.
func NewBaselineCache() *BaselineCache {
	return &BaselineCache{entries: make(map[string]BaselineResult)}
}

// Verify returns the cached result for commit if still fresh, otherwise runs
// typecheckCmd in dir via runner and caches the outcome.
func (c *BaselineCache) Verify(ctx context.Context, runner CommandRunner, dir, commit, typecheckCmd string) BaselineResult {
	c.mu.Lock()
	if cached, ok := c.entries[commit]; ok && time.Since(cached.CheckedAt) < baselineCacheTTL {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	output, err := runner.Run(ctx, dir, typecheckCmd)
	result := BaselineResult{
		Passed:    err == nil,
		Output:    output,
		CheckedAt: time.Now(),
	}

	c.mu.Lock()
	c.entries[commit] = result
	c.mu.Unlock()

	return result
}

// Evict removes entries older than baselineCacheTTL. Callers may run this
// periodically; Verify also self-heals by recomputing stale entries on
// demand.
func (c *BaselineCache) Evict(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for commit, result := range c.entries {
		if now.Sub(result.CheckedAt) >= baselineCacheTTL {
			delete(c.entries, commit)
		}
	}
}
