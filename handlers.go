package mdxblog

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/eringen/mdxblog/markdown"
	"github.com/eringen/mdxblog/metadata"
	"github.com/eringen/mdxblog/postcache"
)

const (
	defaultPopularLimit = 5
	relatedLimit        = 3
	maxNameLen          = 100
	maxEmailLen         = 254
	maxMessageLen       = 5000
	maxPageLimit        = 100
)

// queryFromRequest maps the list query string onto a postcache.Query. A limit
// above maxPageLimit is rejected with 400.
func (a *App) queryFromRequest(c echo.Context) (postcache.Query, error) {
	q := postcache.Query{
		Type:     a.contentType(c),
		PageSize: queryInt(c, "limit", a.Config.PostsPerPage),
		Page:     queryInt(c, "page", 1),
		Search:   c.QueryParam("search"),
		Sort:     c.QueryParam("sort"),
		Category: c.QueryParam("category"),
	}
	if q.PageSize > maxPageLimit {
		return q, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("limit must be at most %d", maxPageLimit))
	}
	return q, nil
}

func (a *App) contentType(c echo.Context) string {
	if t := strings.TrimSpace(c.QueryParam("type")); t != "" {
		return t
	}
	return a.Config.DefaultType
}

func (a *App) handleListPosts(c echo.Context) error {
	q, err := a.queryFromRequest(c)
	if err != nil {
		return err
	}
	res, err := a.Posts.Query(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (a *App) handlePopular(c echo.Context) error {
	limit := queryInt(c, "limit", defaultPopularLimit)
	items, err := a.Posts.Popular(c.Request().Context(), a.contentType(c), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (a *App) handleGetPost(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := a.Posts.Get(ctx, c.Param("slug"), IsAdmin(c))
	if err != nil {
		if errors.Is(err, postcache.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}
	html, err := a.renderArticleBody(post.Slug)
	if err != nil {
		return err
	}
	siblings, err := a.Posts.Published(ctx, post.Type)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ArticlePage{
		Article:   post,
		HTML:      string(html),
		Related:   RelatedArticles(post, siblings, relatedLimit),
		JSONLD:    BlogPostingJsonLD(post, a.Config),
		Canonical: ArticleURL(a.Config.URL, post),
	})
}

// handleArticleFragment serves the rendered body of a published article as
// an HTML fragment.
func (a *App) handleArticleFragment(c echo.Context) error {
	post, err := a.Posts.Get(c.Request().Context(), c.Param("slug"), IsAdmin(c))
	if err != nil {
		if errors.Is(err, postcache.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}
	body, err := a.articleBody(post.Slug)
	if err != nil {
		return err
	}
	return Render(c, ArticleFragment(post, body))
}

// articleBody reads the article source and returns it without its metadata
// declaration. slug must come from the snapshot, never from the request.
func (a *App) articleBody(slug string) ([]byte, error) {
	src, err := os.ReadFile(filepath.Join(a.Config.ContentDir, slug+postcache.DefaultExt))
	if err != nil {
		return nil, fmt.Errorf("read article %s: %w", slug, err)
	}
	_, body, err := metadata.Extract(src)
	if err != nil {
		return nil, fmt.Errorf("article %s: %w", slug, err)
	}
	return body, nil
}

func (a *App) renderArticleBody(slug string) ([]byte, error) {
	body, err := a.articleBody(slug)
	if err != nil {
		return nil, err
	}
	return markdown.Render(body)
}

func (a *App) handleLike(c echo.Context) error {
	if a.Config.LikesBackend != BackendSQLite {
		return echo.NewHTTPError(http.StatusNotImplemented, "likes are read-only for this backend")
	}
	ip := c.RealIP()
	if !a.likeLimiter.Allow(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	}
	ctx := c.Request().Context()
	post, err := a.Posts.Get(ctx, c.Param("slug"), false)
	if err != nil {
		if errors.Is(err, postcache.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "post not found")
		}
		return err
	}
	counted := false
	if !IsBot(c.Request().UserAgent()) {
		counted, err = a.Store.AddLike(ctx, post.ID, VisitorHash(ip, a.visitorSalt), a.now())
		if err != nil {
			return err
		}
	}
	n, err := a.Store.Count(ctx, post.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LikeResult{PostID: post.ID, Likes: n, Counted: counted})
}

func (a *App) handleCategories(c echo.Context) error {
	cats, err := a.Posts.Categories(c.Request().Context(), a.contentType(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cats)
}

func (a *App) handleTags(c echo.Context) error {
	tags, err := a.Posts.Tags(c.Request().Context(), a.contentType(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tags)
}

type contactForm struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Message string `json:"message" form:"message"`
}

func (f *contactForm) validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Message = strings.TrimSpace(f.Message)
	switch {
	case f.Name == "":
		return errors.New("name is required")
	case utf8.RuneCountInString(f.Name) > maxNameLen:
		return fmt.Errorf("name must be at most %d characters", maxNameLen)
	case f.Email == "" || len(f.Email) > maxEmailLen:
		return errors.New("a valid email is required")
	case f.Message == "":
		return errors.New("message is required")
	case utf8.RuneCountInString(f.Message) > maxMessageLen:
		return fmt.Errorf("message must be at most %d characters", maxMessageLen)
	}
	addr, err := mail.ParseAddress(f.Email)
	if err != nil || addr.Address != f.Email {
		return errors.New("a valid email is required")
	}
	return nil
}

func (a *App) handleContact(c echo.Context) error {
	ip := c.RealIP()
	if !a.contactLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	}
	var form contactForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := form.validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	contact := Contact{
		ID:        ulid.Make().String(),
		Name:      form.Name,
		Email:     form.Email,
		Message:   form.Message,
		CreatedAt: a.now().UTC(),
	}
	if err := a.Store.SaveContact(c.Request().Context(), contact); err != nil {
		return err
	}
	a.contactLimiter.Record(ip)
	c.Logger().Infof("contact %s received", contact.ID)
	return c.JSON(http.StatusCreated, map[string]string{"id": contact.ID})
}

func (a *App) handleSite(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"name":        a.Config.Name,
		"url":         a.Config.URL,
		"description": a.Config.Description,
		"jsonLd":      WebsiteJsonLD(a.Config),
	})
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Posts.Published(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Posts.Published(c.Request().Context(), a.Config.DefaultType)
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		if he == nil {
			msg = http.StatusText(code)
		}
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}
