package mdxblog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	var cfg SiteConfig
	cfg.setDefaults()

	if cfg.ContentDir != "content/posts" || cfg.CacheDir != "cache" {
		t.Errorf("dirs = %q, %q", cfg.ContentDir, cfg.CacheDir)
	}
	if cfg.SnapshotBackend != BackendFile || cfg.LikesBackend != BackendSQLite {
		t.Errorf("backends = %q, %q", cfg.SnapshotBackend, cfg.LikesBackend)
	}
	if cfg.PostsPerPage != 10 || cfg.BuildConcurrency != 8 {
		t.Errorf("posts per page = %d, concurrency = %d", cfg.PostsPerPage, cfg.BuildConcurrency)
	}
	if cfg.LikesTimeout != 5*time.Second || cfg.LikesTable != "likes" {
		t.Errorf("likes = %v, %q", cfg.LikesTimeout, cfg.LikesTable)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []SiteConfig{
		{SnapshotBackend: "postgres"},
		{LikesBackend: "redis"},
		{LikesBackend: BackendREST},
		{LikesTable: "likes;--"},
	}
	for _, cfg := range tests {
		cfg.setDefaults()
		if err := cfg.validate(); err == nil {
			t.Errorf("expected validation error for %+v", cfg)
		}
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdxblog.yaml")
	data := `name: From File
url: https://file.example.com
posts_per_page: 25
snapshot_backend: sqlite
likes_timeout: 2s
rebuild_on_start: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MDXBLOG_SITE_URL", "https://env.example.com")
	t.Setenv("MDXBLOG_POSTS_PER_PAGE", "7")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "From File" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.URL != "https://env.example.com" {
		t.Errorf("env should override file, url = %q", cfg.URL)
	}
	if cfg.PostsPerPage != 7 {
		t.Errorf("posts per page = %d, want 7", cfg.PostsPerPage)
	}
	if cfg.SnapshotBackend != BackendSQLite || !cfg.RebuildOnStart {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.LikesTimeout != 2*time.Second {
		t.Errorf("likes timeout = %v", cfg.LikesTimeout)
	}
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("MDXBLOG_POSTS_PER_PAGE", "many")
	if _, err := LoadConfig(""); err == nil {
		t.Error("expected error for non-numeric MDXBLOG_POSTS_PER_PAGE")
	}
}
