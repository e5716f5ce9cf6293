package postcache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// DefaultPageSize applies when a query asks for a page size <= 0.
const DefaultPageSize = 10

// Sort keys understood by Query.
const (
	SortDateDesc  = "date_desc"
	SortDateAsc   = "date_asc"
	SortTitleAsc  = "title_asc"
	SortTitleDesc = "title_desc"
	SortLikesDesc = "likes_desc"
)

// SortKeys lists the supported sort keys, default first.
var SortKeys = []string{SortDateDesc, SortDateAsc, SortTitleAsc, SortTitleDesc, SortLikesDesc}

// Loader supplies the current snapshot. Repositories and the app's snapshot
// cache both satisfy it.
type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}

// Query selects a page of articles of one content type.
type Query struct {
	Type          string
	PageSize      int
	Page          int // 1-based
	Search        string
	Sort          string
	Category      string
	IncludeDrafts bool
}

// Result is one page of matches plus the total number of matches.
type Result struct {
	Items      []Article `json:"items"`
	Total      int       `json:"totalMatching"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// Service answers read queries against the snapshot without touching the
// content directory.
type Service struct {
	loader Loader
}

// NewService returns a Service reading from l.
func NewService(l Loader) *Service {
	return &Service{loader: l}
}

// Query filters, sorts and paginates the snapshot. A missing snapshot, an
// unknown type or a page past the end all yield an empty page.
func (s *Service) Query(ctx context.Context, q Query) (Result, error) {
	q = q.normalized()
	snap, err := s.snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	matches := Filter(snap.Articles(q.IncludeDrafts), q)
	SortArticles(matches, q.Sort)

	total := len(matches)
	return Result{
		Items:      Paginate(matches, q.PageSize, q.Page),
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}, nil
}

// Popular returns up to n published articles of the given type ordered by
// likes, most liked first.
func (s *Service) Popular(ctx context.Context, contentType string, n int) ([]Article, error) {
	res, err := s.Query(ctx, Query{Type: contentType, PageSize: n, Page: 1, Sort: SortLikesDesc})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Get returns the article with the given slug.
func (s *Service) Get(ctx context.Context, slug string, includeDrafts bool) (Article, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return Article{}, err
	}
	for _, a := range snap.Articles(includeDrafts) {
		if a.Slug == slug {
			return a, nil
		}
	}
	return Article{}, ErrNotFound
}

// Published returns every published article of the given type, newest first.
func (s *Service) Published(ctx context.Context, contentType string) ([]Article, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := Filter(snap.Published, Query{Type: contentType})
	SortArticles(out, SortDateDesc)
	return out, nil
}

// Categories returns the sorted, lowercased categories used by published
// articles of the given type.
func (s *Service) Categories(ctx context.Context, contentType string) ([]string, error) {
	return s.collect(ctx, contentType, func(a Article) []string { return a.Categories })
}

// Tags returns the sorted, lowercased tags used by published articles of the
// given type.
func (s *Service) Tags(ctx context.Context, contentType string) ([]string, error) {
	return s.collect(ctx, contentType, func(a Article) []string { return a.Tags })
}

func (s *Service) collect(ctx context.Context, contentType string, field func(Article) []string) ([]string, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, a := range Filter(snap.Published, Query{Type: contentType}) {
		for _, v := range field(a) {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				set[v] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := s.loader.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return Snapshot{All: []Article{}, Published: []Article{}}, nil
	}
	return snap, err
}

func (q Query) normalized() Query {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page < 1 {
		q.Page = 1
	}
	q.Sort = NormalizeSort(q.Sort)
	return q
}

// NormalizeSort maps unknown or empty keys to SortDateDesc.
func NormalizeSort(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, k := range SortKeys {
		if k == key {
			return k
		}
	}
	return SortDateDesc
}

// Filter applies the type, category and search conditions of q. The result
// is a new slice in the original order.
func Filter(articles []Article, q Query) []Article {
	contentType := strings.TrimSpace(q.Type)
	category := strings.TrimSpace(q.Category)
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if contentType != "" && !strings.EqualFold(a.Type, contentType) {
			continue
		}
		if category != "" && !a.InCategory(category) {
			continue
		}
		if term != "" && !matchesSearch(a, term) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// matchesSearch expects term already lowercased.
func matchesSearch(a Article, term string) bool {
	if strings.Contains(strings.ToLower(a.Title), term) ||
		strings.Contains(strings.ToLower(a.Description), term) {
		return true
	}
	for _, t := range a.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

// SortArticles sorts in place. Ties keep their snapshot order.
func SortArticles(articles []Article, key string) {
	switch NormalizeSort(key) {
	case SortDateAsc:
		dates := publishTimes(articles)
		sortStable(articles, dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	case SortTitleAsc:
		sort.SliceStable(articles, func(i, j int) bool {
			return strings.ToLower(articles[i].Title) < strings.ToLower(articles[j].Title)
		})
	case SortTitleDesc:
		sort.SliceStable(articles, func(i, j int) bool {
			return strings.ToLower(articles[i].Title) > strings.ToLower(articles[j].Title)
		})
	case SortLikesDesc:
		sort.SliceStable(articles, func(i, j int) bool { return articles[i].Likes > articles[j].Likes })
	default:
		dates := publishTimes(articles)
		sortStable(articles, dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	}
}

// sortStable sorts articles together with their parsed dates so the less
// function can index dates by position.
func sortStable(articles []Article, dates []time.Time, less func(i, j int) bool) {
	sort.Stable(&byDate{articles: articles, dates: dates, less: less})
}

type byDate struct {
	articles []Article
	dates    []time.Time
	less     func(i, j int) bool
}

func (b *byDate) Len() int           { return len(b.articles) }
func (b *byDate) Less(i, j int) bool { return b.less(i, j) }
func (b *byDate) Swap(i, j int) {
	b.articles[i], b.articles[j] = b.articles[j], b.articles[i]
	b.dates[i], b.dates[j] = b.dates[j], b.dates[i]
}

// publishTimes parses dates once per sort. Unparseable dates sort as the zero
// time.
func publishTimes(articles []Article) []time.Time {
	out := make([]time.Time, len(articles))
	for i, a := range articles {
		if t, ok := ParseDate(a.PublishDate, time.UTC); ok {
			out[i] = t
		}
	}
	return out
}

// Paginate returns the 1-based page of size pageSize, or an empty slice when
// the page lies past the end.
func Paginate(articles []Article, pageSize, page int) []Article {
	if pageSize <= 0 || page < 1 {
		return []Article{}
	}
	start := (page - 1) * pageSize
	if start >= len(articles) {
		return []Article{}
	}
	end := start + pageSize
	if end > len(articles) {
		end = len(articles)
	}
	return articles[start:end]
}
