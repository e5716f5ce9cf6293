package mdxblog

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/eringen/mdxblog/postcache"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrRebuildInProgress is returned when a rebuild is requested while another
// one is still running.
var ErrRebuildInProgress = errors.New("mdxblog: rebuild already in progress")

// SnapshotCache is an in-memory copy of the persisted snapshot with a TTL.
// It satisfies postcache.Loader.
type SnapshotCache struct {
	mu      sync.RWMutex
	snap    postcache.Snapshot
	loaded  bool
	fetched time.Time
	ttl     time.Duration
	repo    postcache.Repository
	now     func() time.Time
}

// NewSnapshotCache creates a SnapshotCache backed by repo.
func NewSnapshotCache(repo postcache.Repository, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{repo: repo, ttl: ttl, now: time.Now}
}

func (c *SnapshotCache) valid() bool {
	return c.loaded && (c.ttl <= 0 || c.now().Sub(c.fetched) < c.ttl)
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *SnapshotCache) Invalidate() {
	c.mu.Lock()
	c.snap = postcache.Snapshot{}
	c.loaded = false
	c.mu.Unlock()
}

// Set replaces the cached snapshot, typically right after a rebuild.
func (c *SnapshotCache) Set(snap postcache.Snapshot) {
	c.mu.Lock()
	c.snap = snap
	c.loaded = true
	c.fetched = c.now()
	c.mu.Unlock()
}

// Load returns the cached snapshot, reading the repository when the cache is
// empty or stale. It tries a read lock first and only takes the write lock
// when a reload is needed. A missing snapshot is not cached.
func (c *SnapshotCache) Load(ctx context.Context) (postcache.Snapshot, error) {
	c.mu.RLock()
	if c.valid() {
		snap := c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.snap, nil
	}
	snap, err := c.repo.Load(ctx)
	if err != nil {
		return postcache.Snapshot{}, err
	}
	c.snap = snap
	c.loaded = true
	c.fetched = c.now()
	return snap, nil
}
