// Package postcache builds and serves the article cache: a snapshot of every
// article found in the content directory, enriched with like counts and split
// into all and published sequences.
package postcache

import (
	"errors"
	"strings"
	"time"

	"github.com/eringen/mdxblog/metadata"
)

var (
	// ErrNoSnapshot is returned by a Repository that has never been written.
	ErrNoSnapshot = errors.New("postcache: no snapshot")
	// ErrNotFound is returned when no article matches a slug.
	ErrNotFound = errors.New("postcache: article not found")
)

// Article is one cached article: its metadata, the slug derived from its
// file name, and its like count at build time.
type Article struct {
	Slug        string   `json:"slug"`
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Categories  []string `json:"categories"`
	PublishDate string   `json:"publishDate"`
	Draft       bool     `json:"draft,omitempty"`
	Author      string   `json:"author"`
	Image       string   `json:"image,omitempty"`
	Likes       int      `json:"likes"`
}

// NewArticle combines extracted metadata with a slug and like count.
func NewArticle(slug string, m *metadata.Metadata, likes int) Article {
	return Article{
		Slug:        slug,
		ID:          m.ID,
		Type:        m.Type,
		Title:       m.Title,
		Description: m.Description,
		Tags:        nonNil(m.Tags),
		Categories:  nonNil(m.Categories),
		PublishDate: m.PublishDate,
		Draft:       m.Draft,
		Author:      m.Author,
		Image:       m.Image,
		Likes:       likes,
	}
}

// Published reports whether the article is visible on the day containing now:
// it is not a draft and its publish date is not after that day.
func (a Article) Published(now time.Time) bool {
	if a.Draft {
		return false
	}
	d, ok := ParseDate(a.PublishDate, now.Location())
	if !ok {
		return false
	}
	return !Day(d).After(Day(now))
}

// HasTag reports whether the article carries tag, ignoring case.
func (a Article) HasTag(tag string) bool {
	return containsFold(a.Tags, tag)
}

// InCategory reports whether the article belongs to category, ignoring case.
func (a Article) InCategory(category string) bool {
	return containsFold(a.Categories, category)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseDate parses an article publish date. Values without a zone are read in
// loc; zoned values are converted to loc.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func containsFold(vals []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range vals {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

func nonNil(vals []string) []string {
	if len(vals) == 0 {
		return []string{}
	}
	return append([]string(nil), vals...)
}
