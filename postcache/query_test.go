package postcache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memLoader struct {
	snap Snapshot
	err  error
}

func (m memLoader) Load(context.Context) (Snapshot, error) { return m.snap, m.err }

func published(articles ...Article) Snapshot {
	return Snapshot{All: articles, Published: articles}
}

// twentyFiveBlogs returns blog articles dated 2024-01-01 .. 2024-01-25 in
// scrambled order, plus a few projects.
func twentyFiveBlogs() []Article {
	var out []Article
	for i := 0; i < 25; i++ {
		day := (i*7)%25 + 1
		out = append(out, Article{
			Slug:        fmt.Sprintf("blog-%02d", day),
			ID:          fmt.Sprintf("b%02d", day),
			Type:        "blog",
			Title:       fmt.Sprintf("Blog %02d", day),
			PublishDate: fmt.Sprintf("2024-01-%02d", day),
			Tags:        []string{},
			Categories:  []string{},
		})
	}
	for i := 0; i < 3; i++ {
		out = append(out, Article{Slug: fmt.Sprintf("proj-%d", i), Type: "project", PublishDate: "2024-02-01"})
	}
	return out
}

func TestQueryThirdPageOfTwentyFive(t *testing.T) {
	svc := NewService(memLoader{snap: published(twentyFiveBlogs()...)})

	res, err := svc.Query(context.Background(), Query{Type: "blog", PageSize: 10, Page: 3, Search: "", Sort: "date_desc"})
	require.NoError(t, err)
	require.Equal(t, 25, res.Total)
	require.Equal(t, 3, res.TotalPages)
	require.Equal(t, []string{"blog-05", "blog-04", "blog-03", "blog-02", "blog-01"}, slugs(res.Items))
}

func TestQueryPageBeyondRange(t *testing.T) {
	svc := NewService(memLoader{snap: published(twentyFiveBlogs()...)})

	res, err := svc.Query(context.Background(), Query{Type: "blog", PageSize: 20, Page: 99})
	require.NoError(t, err)
	require.NotNil(t, res.Items)
	require.Empty(t, res.Items)
	require.Equal(t, 25, res.Total)
	require.Equal(t, 2, res.TotalPages)
}

func TestQueryUnknownTypeIsEmpty(t *testing.T) {
	svc := NewService(memLoader{snap: published(twentyFiveBlogs()...)})

	res, err := svc.Query(context.Background(), Query{Type: "podcast", PageSize: 10, Page: 1})
	require.NoError(t, err)
	require.Empty(t, res.Items)
	require.Equal(t, 0, res.Total)
}

func TestQueryMissingSnapshotIsEmpty(t *testing.T) {
	svc := NewService(memLoader{err: ErrNoSnapshot})

	res, err := svc.Query(context.Background(), Query{Type: "blog"})
	require.NoError(t, err)
	require.Empty(t, res.Items)
	require.Equal(t, 0, res.Total)
}

func TestQuerySearchCaseInsensitiveAcrossFields(t *testing.T) {
	arts := []Article{
		{Slug: "title", Type: "blog", Title: "Learning GOLANG", PublishDate: "2024-01-01"},
		{Slug: "desc", Type: "blog", Title: "Other", Description: "notes on golang tooling", PublishDate: "2024-01-02"},
		{Slug: "tag", Type: "blog", Title: "Tagged", Tags: []string{"GoLang-Tips"}, PublishDate: "2024-01-03"},
		{Slug: "none", Type: "blog", Title: "Rust", Description: "borrow checker", Tags: []string{"rust"}, PublishDate: "2024-01-04"},
	}
	svc := NewService(memLoader{snap: published(arts...)})

	res, err := svc.Query(context.Background(), Query{Type: "blog", Search: "golang"})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	require.ElementsMatch(t, []string{"title", "desc", "tag"}, slugs(res.Items))
}

func TestQueryCategoryAndSearchCompose(t *testing.T) {
	arts := []Article{
		{Slug: "a", Type: "blog", Title: "Go tips", Categories: []string{"Engineering"}, PublishDate: "2024-01-01"},
		{Slug: "b", Type: "blog", Title: "Go hiring", Categories: []string{"people"}, PublishDate: "2024-01-02"},
		{Slug: "c", Type: "blog", Title: "Kubernetes", Categories: []string{"engineering"}, PublishDate: "2024-01-03"},
	}
	svc := NewService(memLoader{snap: published(arts...)})

	res, err := svc.Query(context.Background(), Query{Type: "blog", Category: "engineering", Search: "go"})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, slugs(res.Items))
	require.Equal(t, 1, res.Total)
}

func TestQueryDefaultSortIsStable(t *testing.T) {
	arts := []Article{
		{Slug: "first", Type: "blog", PublishDate: "2024-03-01"},
		{Slug: "older", Type: "blog", PublishDate: "2024-01-01"},
		{Slug: "second", Type: "blog", PublishDate: "2024-03-01"},
		{Slug: "newest", Type: "blog", PublishDate: "2024-04-01"},
		{Slug: "third", Type: "blog", PublishDate: "2024-03-01"},
	}
	svc := NewService(memLoader{snap: published(arts...)})

	res, err := svc.Query(context.Background(), Query{Type: "blog"})
	require.NoError(t, err)
	require.Equal(t, []string{"newest", "first", "second", "third", "older"}, slugs(res.Items))
}

func TestQuerySortKeys(t *testing.T) {
	arts := []Article{
		{Slug: "b", Type: "blog", Title: "banana", PublishDate: "2024-02-01", Likes: 5},
		{Slug: "a", Type: "blog", Title: "Apple", PublishDate: "2024-03-01", Likes: 1},
		{Slug: "c", Type: "blog", Title: "cherry", PublishDate: "2024-01-01", Likes: 9},
	}
	tests := []struct {
		sort string
		want []string
	}{
		{"date_desc", []string{"a", "b", "c"}},
		{"date_asc", []string{"c", "b", "a"}},
		{"title_asc", []string{"a", "b", "c"}},
		{"title_desc", []string{"c", "b", "a"}},
		{"likes_desc", []string{"c", "b", "a"}},
		{"bogus", []string{"a", "b", "c"}},
		{"", []string{"a", "b", "c"}},
	}
	svc := NewService(memLoader{snap: published(arts...)})
	for _, tt := range tests {
		res, err := svc.Query(context.Background(), Query{Type: "blog", Sort: tt.sort})
		require.NoError(t, err)
		require.Equal(t, tt.want, slugs(res.Items), "sort %q", tt.sort)
	}
}

func TestQueryDoesNotMutateSnapshot(t *testing.T) {
	arts := []Article{
		{Slug: "old", Type: "blog", PublishDate: "2024-01-01"},
		{Slug: "new", Type: "blog", PublishDate: "2024-06-01"},
	}
	snap := published(arts...)
	svc := NewService(memLoader{snap: snap})

	_, err := svc.Query(context.Background(), Query{Type: "blog"})
	require.NoError(t, err)
	require.Equal(t, []string{"old", "new"}, slugs(snap.All))
}

func TestQueryIncludeDrafts(t *testing.T) {
	snap := Snapshot{
		All: []Article{
			{Slug: "live", Type: "blog", PublishDate: "2024-01-01"},
			{Slug: "draft", Type: "blog", PublishDate: "2024-01-02", Draft: true},
		},
	}
	snap.Published = snap.All[:1]
	svc := NewService(memLoader{snap: snap})

	public, err := svc.Query(context.Background(), Query{Type: "blog"})
	require.NoError(t, err)
	require.Equal(t, []string{"live"}, slugs(public.Items))

	admin, err := svc.Query(context.Background(), Query{Type: "blog", IncludeDrafts: true})
	require.NoError(t, err)
	require.Equal(t, []string{"draft", "live"}, slugs(admin.Items))

	_, err = svc.Get(context.Background(), "draft", false)
	require.ErrorIs(t, err, ErrNotFound)
	got, err := svc.Get(context.Background(), "draft", true)
	require.NoError(t, err)
	require.True(t, got.Draft)
}

func TestQueryPageDefaults(t *testing.T) {
	svc := NewService(memLoader{snap: published(twentyFiveBlogs()...)})

	res, err := svc.Query(context.Background(), Query{Type: "blog", PageSize: 0, Page: 0})
	require.NoError(t, err)
	require.Equal(t, DefaultPageSize, res.PageSize)
	require.Equal(t, 1, res.Page)
	require.Len(t, res.Items, DefaultPageSize)
}

func TestQueryLargePageSizeIsHonoured(t *testing.T) {
	var arts []Article
	for i := 0; i < 150; i++ {
		arts = append(arts, Article{Slug: fmt.Sprintf("p-%03d", i), Type: "blog", PublishDate: "2024-01-01"})
	}
	svc := NewService(memLoader{snap: published(arts...)})

	res, err := svc.Query(context.Background(), Query{Type: "blog", PageSize: 150, Page: 1})
	require.NoError(t, err)
	require.Len(t, res.Items, 150)
	require.Equal(t, 150, res.PageSize)
	require.Equal(t, 1, res.TotalPages)
}

func TestPopularAndListings(t *testing.T) {
	arts := []Article{
		{Slug: "a", Type: "blog", Likes: 2, Tags: []string{"Go", "web"}, Categories: []string{"Eng"}, PublishDate: "2024-01-01"},
		{Slug: "b", Type: "blog", Likes: 8, Tags: []string{"go"}, Categories: []string{"life"}, PublishDate: "2024-01-02"},
		{Slug: "c", Type: "blog", Likes: 8, Tags: []string{"rust"}, PublishDate: "2024-01-03"},
		{Slug: "p", Type: "project", Likes: 50, Tags: []string{"cli"}, PublishDate: "2024-01-04"},
	}
	svc := NewService(memLoader{snap: published(arts...)})
	ctx := context.Background()

	top, err := svc.Popular(ctx, "blog", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, slugs(top))

	tags, err := svc.Tags(ctx, "blog")
	require.NoError(t, err)
	require.Equal(t, []string{"go", "rust", "web"}, tags)

	cats, err := svc.Categories(ctx, "blog")
	require.NoError(t, err)
	require.Equal(t, []string{"eng", "life"}, cats)
}

func TestPaginate(t *testing.T) {
	arts := make([]Article, 7)
	require.Len(t, Paginate(arts, 3, 1), 3)
	require.Len(t, Paginate(arts, 3, 3), 1)
	require.Empty(t, Paginate(arts, 3, 4))
	require.Empty(t, Paginate(arts, 0, 1))
	require.Empty(t, Paginate(nil, 3, 1))
}
