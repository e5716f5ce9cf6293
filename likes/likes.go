// Package likes counts the likes recorded for an article in an external store.
//
// Likes are an enrichment: a failed lookup is logged and reported as zero so
// the caller never has to handle the error.
package likes

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single count lookup.
const DefaultTimeout = 5 * time.Second

// Provider returns the number of likes stored for a post id.
type Provider interface {
	Count(ctx context.Context, postID string) (int, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, postID string) (int, error)

// Count calls f.
func (f ProviderFunc) Count(ctx context.Context, postID string) (int, error) {
	return f(ctx, postID)
}

// Logger is the subset of echo's logger used here.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Fetcher applies the lookup policy on top of a Provider: one attempt per
// call, bounded by Timeout, zero on failure.
type Fetcher struct {
	Provider Provider
	Timeout  time.Duration
	Logger   Logger
}

// NewFetcher returns a Fetcher using DefaultTimeout.
func NewFetcher(p Provider, logger Logger) *Fetcher {
	return &Fetcher{Provider: p, Timeout: DefaultTimeout, Logger: logger}
}

// Likes returns the like count for postID, or 0 if the lookup fails.
func (f *Fetcher) Likes(ctx context.Context, postID string) int {
	if f == nil || f.Provider == nil {
		return 0
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := f.Provider.Count(ctx, postID)
	if err != nil {
		if f.Logger != nil {
			f.Logger.Warnf("likes: count for post %q failed: %v", postID, err)
		}
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}
