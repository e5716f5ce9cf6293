package postcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// AllPostsFile holds every article with metadata.
	AllPostsFile = "all-posts.json"
	// PublishedPostsFile holds the published subset.
	PublishedPostsFile = "published-posts.json"
)

// Snapshot is the output of one rebuild.
type Snapshot struct {
	All       []Article
	Published []Article
}

// NewSnapshot classifies articles against now. Published keeps the relative
// order of all.
func NewSnapshot(all []Article, now time.Time) Snapshot {
	s := Snapshot{
		All:       make([]Article, 0, len(all)),
		Published: make([]Article, 0, len(all)),
	}
	for _, a := range all {
		s.All = append(s.All, a)
		if a.Published(now) {
			s.Published = append(s.Published, a)
		}
	}
	return s
}

// Articles returns All when includeDrafts is set, Published otherwise.
func (s Snapshot) Articles(includeDrafts bool) []Article {
	if includeDrafts {
		return s.All
	}
	return s.Published
}

// Repository persists snapshots. Save replaces whatever was stored before.
type Repository interface {
	Save(ctx context.Context, s Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// FileStore keeps the snapshot as two pretty-printed JSON files in Dir.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Save writes both files, creating Dir if needed. Each file is written to a
// temporary name and renamed into place.
func (f *FileStore) Save(_ context.Context, s Snapshot) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("postcache: create cache dir: %w", err)
	}
	if err := writeJSONFile(filepath.Join(f.Dir, AllPostsFile), s.All); err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(f.Dir, PublishedPostsFile), s.Published)
}

// Load reads both files. It returns ErrNoSnapshot if the all-posts file has
// never been written.
func (f *FileStore) Load(_ context.Context) (Snapshot, error) {
	all, err := readJSONFile(filepath.Join(f.Dir, AllPostsFile))
	if err != nil {
		return Snapshot{}, err
	}
	published, err := readJSONFile(filepath.Join(f.Dir, PublishedPostsFile))
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return Snapshot{}, err
	}
	return Snapshot{All: all, Published: published}, nil
}

// MarshalArticles renders articles the way the cache files store them: two
// space indentation, no HTML escaping, "[]" for an empty list.
func MarshalArticles(articles []Article) ([]byte, error) {
	if articles == nil {
		articles = []Article{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(articles); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeJSONFile(path string, articles []Article) error {
	data, err := MarshalArticles(articles)
	if err != nil {
		return fmt.Errorf("postcache: encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("postcache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("postcache: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("postcache: sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("postcache: close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("postcache: chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("postcache: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSONFile(path string) ([]Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Article{}, ErrNoSnapshot
		}
		return nil, fmt.Errorf("postcache: read %s: %w", filepath.Base(path), err)
	}
	var articles []Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("postcache: decode %s: %w", filepath.Base(path), err)
	}
	if articles == nil {
		articles = []Article{}
	}
	return articles, nil
}
