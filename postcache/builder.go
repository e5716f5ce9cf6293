package postcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/eringen/mdxblog/metadata"
)

const (
	// DefaultExt is the content file extension picked up by the builder.
	DefaultExt = ".mdx"
	// DefaultConcurrency bounds the number of files processed at once.
	DefaultConcurrency = 8
)

// Logger is the subset of echo's logger the builder writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// LikeCounter returns the like count for a post id. Failures are the
// counter's concern; see likes.Fetcher.
type LikeCounter interface {
	Likes(ctx context.Context, postID string) int
}

// Builder scans ContentDir and writes a fresh snapshot to Store. A Builder
// must not run concurrently with itself.
type Builder struct {
	ContentDir  string
	Ext         string
	Store       Repository
	Likes       LikeCounter
	Logger      Logger
	Now         func() time.Time
	Concurrency int
}

// NewBuilder returns a Builder with default extension, concurrency, clock and
// logger.
func NewBuilder(contentDir string, store Repository, likes LikeCounter) *Builder {
	return &Builder{
		ContentDir:  contentDir,
		Ext:         DefaultExt,
		Store:       store,
		Likes:       likes,
		Logger:      log.New("postcache"),
		Now:         time.Now,
		Concurrency: DefaultConcurrency,
	}
}

// Rebuild reads every content file, enriches it with likes, classifies it and
// saves the resulting snapshot. A file that cannot be read or carries no
// usable metadata is skipped with a warning.
func (b *Builder) Rebuild(ctx context.Context) (Snapshot, error) {
	names, err := b.contentFiles()
	if err != nil {
		return Snapshot{}, err
	}

	slots := make([]*Article, len(names))
	workers := b.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()
			slots[i] = b.buildArticle(ctx, name)
		}(i, name)
	}
	wg.Wait()

	all := make([]Article, 0, len(slots))
	seen := make(map[string]string, len(slots))
	for _, a := range slots {
		if a == nil {
			continue
		}
		if prev, dup := seen[a.ID]; dup {
			b.logger().Warnf("postcache: duplicate id %q in %s (already used by %s), skipping", a.ID, a.Slug, prev)
			continue
		}
		seen[a.ID] = a.Slug
		all = append(all, *a)
	}

	snap := NewSnapshot(all, b.now())
	if err := b.Store.Save(ctx, snap); err != nil {
		return Snapshot{}, fmt.Errorf("postcache: save snapshot: %w", err)
	}
	b.logger().Infof("postcache: rebuilt %d articles (%d published)", len(snap.All), len(snap.Published))
	return snap, nil
}

// contentFiles lists candidate files in lexical order.
func (b *Builder) contentFiles() ([]string, error) {
	entries, err := os.ReadDir(b.ContentDir)
	if err != nil {
		return nil, fmt.Errorf("postcache: read content dir: %w", err)
	}
	ext := b.ext()
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (b *Builder) buildArticle(ctx context.Context, name string) *Article {
	src, err := os.ReadFile(filepath.Join(b.ContentDir, name))
	if err != nil {
		b.logger().Warnf("postcache: read %s: %v", name, err)
		return nil
	}
	meta, _, err := metadata.Extract(src)
	if err != nil {
		b.logger().Warnf("postcache: metadata invalid for file %s: %v", name, err)
		return nil
	}
	if meta == nil {
		b.logger().Warnf("postcache: metadata missing for file %s", name)
		return nil
	}

	likes := 0
	if b.Likes != nil {
		likes = b.Likes.Likes(ctx, meta.ID)
	}
	a := NewArticle(strings.TrimSuffix(name, b.ext()), meta, likes)
	return &a
}

func (b *Builder) ext() string {
	if b.Ext == "" {
		return DefaultExt
	}
	return b.Ext
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b *Builder) logger() Logger {
	if b.Logger == nil {
		return log.New("postcache")
	}
	return b.Logger
}
