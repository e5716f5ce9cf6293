package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// setupSite writes a config file and a small content directory, returning
// the config path.
func setupSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	content := filepath.Join(root, "posts")
	if err := os.MkdirAll(content, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	posts := map[string]string{
		"hello.mdx":  `export const metadata = { id: "1", type: "blog", title: "Hello", tags: ["go"], publishDate: "2024-01-01" };`,
		"second.mdx": `export const metadata = { id: "2", type: "blog", title: "Second", tags: [], publishDate: "2024-02-01" };`,
		"draft.mdx":  `export const metadata = { id: "3", type: "blog", title: "Draft", draft: true, publishDate: "2024-03-01" };`,
	}
	for name, body := range posts {
		if err := os.WriteFile(filepath.Join(content, name), []byte(body+"\n\nBody.\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	cfg := fmt.Sprintf(`content_dir: %q
cache_dir: %q
database_path: %q
`, content, filepath.Join(root, "cache"), filepath.Join(root, "data", "blog.db"))
	path := filepath.Join(root, "mdxblog.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLIApp()
	app.Writer = &out
	err := app.Run(append([]string{"mdxblog"}, args...))
	return out.String(), err
}

func TestRebuildThenQuery(t *testing.T) {
	cfg := setupSite(t)

	out, err := run(t, "--config", cfg, "rebuild")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	var counts map[string]int
	if err := json.Unmarshal([]byte(out), &counts); err != nil {
		t.Fatalf("decode rebuild output %q: %v", out, err)
	}
	if counts["all"] != 3 || counts["published"] != 2 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	out, err = run(t, "--config", cfg, "query", "--limit", "1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var res struct {
		Items []struct {
			Slug string `json:"slug"`
		} `json:"items"`
		Total      int `json:"totalMatching"`
		TotalPages int `json:"totalPages"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode query output: %v", err)
	}
	if res.Total != 2 || res.TotalPages != 2 {
		t.Fatalf("expected 2 matches over 2 pages, got %d/%d", res.Total, res.TotalPages)
	}
	if len(res.Items) != 1 || res.Items[0].Slug != "second" {
		t.Fatalf("expected newest post first, got %+v", res.Items)
	}

	out, err = run(t, "--config", cfg, "query", "--drafts", "--search", "draft")
	if err != nil {
		t.Fatalf("query drafts: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode query output: %v", err)
	}
	if res.Total != 1 || res.Items[0].Slug != "draft" {
		t.Fatalf("expected the draft, got %+v", res)
	}
}

func TestQueryWithoutSnapshotIsEmpty(t *testing.T) {
	cfg := setupSite(t)

	out, err := run(t, "--config", cfg, "query")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var res struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"totalMatching"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Items == nil || len(res.Items) != 0 || res.Total != 0 {
		t.Fatalf("expected empty result, got %s", out)
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "rebuild")
	if err == nil {
		t.Fatalf("expected error for missing config")
	}
}
