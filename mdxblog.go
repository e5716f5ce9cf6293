// Package mdxblog serves a blog whose articles are MDX files on disk.
//
// A rebuild scans the content directory, extracts each article's metadata
// literal, looks up its like count and persists a snapshot of all and
// published articles. Every read goes through that snapshot; the content
// directory is only touched again to render an article body.
package mdxblog

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/eringen/mdxblog/likes"
	"github.com/eringen/mdxblog/postcache"
)

// App is the central mdxblog application. It wires together the store,
// snapshot pipeline, handlers and middleware.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Store     *Store
	Snapshots postcache.Repository
	Cache     *SnapshotCache
	Posts     *postcache.Service
	Builder   *postcache.Builder

	likesProvider  likes.Provider
	visitorSalt    string
	now            func() time.Time
	rebuildMu      sync.Mutex
	loginLimiter   *RateLimiter
	likeLimiter    *RateLimiter
	contactLimiter *RateLimiter
	customRoutes   []func(*App)
	opened         bool
	routed         bool
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetPrefix("mdxblog")
	e.Logger.SetLevel(log.INFO)

	a := &App{
		Config: cfg,
		Echo:   e,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Open prepares the store and the snapshot pipeline. It is enough for the
// rebuild and query commands, which never serve HTTP.
func (a *App) Open() error {
	if a.opened {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return err
	}

	store, err := NewStore(a.Config.DatabasePath, a.Config.LikesTable)
	if err != nil {
		return fmt.Errorf("mdxblog: init store: %w", err)
	}
	a.Store = store

	switch a.Config.SnapshotBackend {
	case BackendSQLite:
		repo, err := postcache.NewSQLiteStore(store.DB())
		if err != nil {
			return fmt.Errorf("mdxblog: init snapshot store: %w", err)
		}
		a.Snapshots = repo
	default:
		a.Snapshots = postcache.NewFileStore(a.Config.CacheDir)
	}

	fetcher := likes.NewFetcher(a.newLikesProvider(), a.Echo.Logger)
	fetcher.Timeout = a.Config.LikesTimeout

	a.Builder = postcache.NewBuilder(a.Config.ContentDir, a.Snapshots, fetcher)
	a.Builder.Logger = a.Echo.Logger
	a.Builder.Now = a.now
	a.Builder.Concurrency = a.Config.BuildConcurrency

	a.Cache = NewSnapshotCache(a.Snapshots, a.Config.PostCacheTTL)
	a.Posts = postcache.NewService(a.Cache)
	a.opened = true
	return nil
}

func (a *App) newLikesProvider() likes.Provider {
	if a.likesProvider != nil {
		return a.likesProvider
	}
	if a.Config.LikesBackend == BackendREST {
		return &likes.RESTProvider{
			BaseURL: a.Config.RESTURL,
			APIKey:  a.Config.RESTKey,
			Table:   a.Config.LikesTable,
		}
	}
	return a.Store
}

// Init opens the app and registers middleware and routes without starting
// the listener. Tests drive the returned Echo instance directly.
func (a *App) Init() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("mdxblog: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("mdxblog: SessionSecret is required")
	}
	if err := a.Open(); err != nil {
		return err
	}
	if a.routed {
		return nil
	}
	salt, err := a.Store.VisitorSalt(context.Background())
	if err != nil {
		return fmt.Errorf("mdxblog: %w", err)
	}
	a.visitorSalt = salt

	a.loginLimiter = NewRateLimiter(5, time.Minute)
	a.likeLimiter = NewRateLimiter(30, time.Minute)
	a.contactLimiter = NewRateLimiter(5, 10*time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.routed = true
	return nil
}

// Start initializes the app, optionally rebuilds the snapshot, and serves
// until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	if a.Config.RebuildOnStart {
		if _, err := a.Rebuild(context.Background()); err != nil {
			return fmt.Errorf("mdxblog: initial rebuild: %w", err)
		}
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Rebuild regenerates the snapshot and swaps it into the cache. It returns
// ErrRebuildInProgress instead of waiting when another rebuild is running.
// The rebuild outlives a cancelled caller so a dropped admin request cannot
// leave likes zeroed.
func (a *App) Rebuild(ctx context.Context) (postcache.Snapshot, error) {
	if err := a.Open(); err != nil {
		return postcache.Snapshot{}, err
	}
	if !a.rebuildMu.TryLock() {
		return postcache.Snapshot{}, ErrRebuildInProgress
	}
	defer a.rebuildMu.Unlock()

	snap, err := a.Builder.Rebuild(context.WithoutCancel(ctx))
	if err != nil {
		return postcache.Snapshot{}, err
	}
	a.Cache.Set(snap)
	return snap, nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog/:slug/", a.handleArticleFragment)

	api := e.Group("/api")
	api.GET("/site", a.handleSite)
	api.GET("/posts", a.handleListPosts)
	api.GET("/posts/popular", a.handlePopular)
	api.GET("/posts/:slug", a.handleGetPost)
	api.POST("/posts/:slug/likes", a.handleLike)
	api.GET("/categories", a.handleCategories)
	api.GET("/tags", a.handleTags)
	api.POST("/contacts", a.handleContact)

	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	admin := e.Group("/admin", requireAdmin)
	admin.GET("/posts/", a.handleAdminPosts)
	admin.POST("/rebuild/", a.handleAdminRebuild)
	admin.GET("/contacts/", a.handleAdminContacts)
	admin.DELETE("/contacts/:id/", a.handleAdminDeleteContact)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	for _, l := range []*RateLimiter{a.loginLimiter, a.likeLimiter, a.contactLimiter} {
		if l != nil {
			l.Close()
		}
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
