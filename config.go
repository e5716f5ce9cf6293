package mdxblog

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eringen/mdxblog/likes"
)

// SiteConfig holds all configuration for an mdxblog site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "MDXBlog")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and JSON-LD
	Author      string `yaml:"author"`      // Author name for JSON-LD

	Addr         string `yaml:"addr"`          // Listen address (default ":3000")
	DatabasePath string `yaml:"database_path"` // SQLite path for likes and contacts (default "data/blog.db")

	ContentDir       string        `yaml:"content_dir"`       // Article files (default "content/posts")
	CacheDir         string        `yaml:"cache_dir"`         // Snapshot files (default "cache")
	SnapshotBackend  string        `yaml:"snapshot_backend"`  // "file" (default) or "sqlite"
	DefaultType      string        `yaml:"default_type"`      // Content type served when none is requested (default "blog")
	PostsPerPage     int           `yaml:"posts_per_page"`    // Default page size (default 10)
	BuildConcurrency int           `yaml:"build_concurrency"` // Files processed in parallel during a rebuild (default 8)
	RebuildOnStart   bool          `yaml:"rebuild_on_start"`  // Rebuild the snapshot before serving
	PostCacheTTL     time.Duration `yaml:"post_cache_ttl"`    // In-memory snapshot TTL (default 5m)

	LikesBackend string        `yaml:"likes_backend"` // "sqlite" (default) or "rest"
	LikesTable   string        `yaml:"likes_table"`   // Likes table name (default "likes")
	LikesTimeout time.Duration `yaml:"likes_timeout"` // Per-article count timeout (default 5s)
	RESTURL      string        `yaml:"rest_url"`      // Base URL of the hosted REST backend
	RESTKey      string        `yaml:"rest_key"`      // API key for the hosted REST backend

	AdminPassword string `yaml:"admin_password"` // Required to serve: admin login password
	SessionSecret string `yaml:"session_secret"` // Required to serve: session and visitor hash secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendREST   = "rest"
)

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "MDXBlog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/blog.db"
	}
	if c.ContentDir == "" {
		c.ContentDir = "content/posts"
	}
	if c.CacheDir == "" {
		c.CacheDir = "cache"
	}
	if c.SnapshotBackend == "" {
		c.SnapshotBackend = BackendFile
	}
	if c.DefaultType == "" {
		c.DefaultType = "blog"
	}
	if c.PostsPerPage <= 0 {
		c.PostsPerPage = 10
	}
	if c.BuildConcurrency <= 0 {
		c.BuildConcurrency = 8
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.LikesBackend == "" {
		c.LikesBackend = BackendSQLite
	}
	if c.LikesTable == "" {
		c.LikesTable = "likes"
	}
	if c.LikesTimeout == 0 {
		c.LikesTimeout = likes.DefaultTimeout
	}
}

func (c *SiteConfig) validate() error {
	switch c.SnapshotBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("mdxblog: unknown snapshot backend %q", c.SnapshotBackend)
	}
	switch c.LikesBackend {
	case BackendSQLite:
	case BackendREST:
		if c.RESTURL == "" {
			return errors.New("mdxblog: rest likes backend needs RESTURL")
		}
	default:
		return fmt.Errorf("mdxblog: unknown likes backend %q", c.LikesBackend)
	}
	if !validTableName(c.LikesTable) {
		return fmt.Errorf("mdxblog: invalid likes table name %q", c.LikesTable)
	}
	return nil
}

// LoadConfig reads a YAML config file (if path is non-empty), then applies
// MDXBLOG_* environment overrides. Defaults are filled in by New.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("mdxblog: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("mdxblog: parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *SiteConfig) applyEnv() error {
	c.Name = EnvOr("MDXBLOG_SITE_NAME", c.Name)
	c.URL = EnvOr("MDXBLOG_SITE_URL", c.URL)
	c.Description = EnvOr("MDXBLOG_SITE_DESCRIPTION", c.Description)
	c.Author = EnvOr("MDXBLOG_SITE_AUTHOR", c.Author)
	c.Addr = EnvOr("MDXBLOG_ADDR", c.Addr)
	c.DatabasePath = EnvOr("MDXBLOG_DATABASE_PATH", c.DatabasePath)
	c.ContentDir = EnvOr("MDXBLOG_CONTENT_DIR", c.ContentDir)
	c.CacheDir = EnvOr("MDXBLOG_CACHE_DIR", c.CacheDir)
	c.SnapshotBackend = EnvOr("MDXBLOG_SNAPSHOT_BACKEND", c.SnapshotBackend)
	c.DefaultType = EnvOr("MDXBLOG_DEFAULT_TYPE", c.DefaultType)
	c.LikesBackend = EnvOr("MDXBLOG_LIKES_BACKEND", c.LikesBackend)
	c.LikesTable = EnvOr("MDXBLOG_LIKES_TABLE", c.LikesTable)
	c.RESTURL = EnvOr("MDXBLOG_REST_URL", c.RESTURL)
	c.RESTKey = EnvOr("MDXBLOG_REST_KEY", c.RESTKey)
	c.AdminPassword = EnvOr("MDXBLOG_ADMIN_PASSWORD", c.AdminPassword)
	c.SessionSecret = EnvOr("MDXBLOG_SESSION_SECRET", c.SessionSecret)

	if v := os.Getenv("MDXBLOG_POSTS_PER_PAGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("mdxblog: MDXBLOG_POSTS_PER_PAGE: %w", err)
		}
		c.PostsPerPage = n
	}
	if v := os.Getenv("MDXBLOG_REBUILD_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("mdxblog: MDXBLOG_REBUILD_ON_START: %w", err)
		}
		c.RebuildOnStart = b
	}
	if v := os.Getenv("MDXBLOG_COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("mdxblog: MDXBLOG_COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}
	if v := os.Getenv("MDXBLOG_LIKES_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("mdxblog: MDXBLOG_LIKES_TIMEOUT: %w", err)
		}
		c.LikesTimeout = d
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLikesProvider replaces the configured likes backend.
func WithLikesProvider(p likes.Provider) Option {
	return func(a *App) {
		a.likesProvider = p
	}
}

// WithClock sets the clock used to classify articles and stamp contacts.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
