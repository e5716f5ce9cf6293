package mdxblog

import (
	"encoding/json"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/mdxblog/postcache"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// ArticleURL is the canonical page URL of an article. Every content type
// is served under /blog/.
func ArticleURL(base string, a postcache.Article) string {
	return BuildURL(base, "blog", a.Slug)
}

// RelatedArticles returns up to limit articles that share at least one tag
// with current, in the order given.
func RelatedArticles(current postcache.Article, articles []postcache.Article, limit int) []postcache.Article {
	related := []postcache.Article{}
	for _, a := range articles {
		if limit > 0 && len(related) >= limit {
			break
		}
		if a.Slug == current.Slug {
			continue
		}
		for _, t := range current.Tags {
			if strings.TrimSpace(t) != "" && a.HasTag(t) {
				related = append(related, a)
				break
			}
		}
	}
	return related
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema. The
// article's own author wins over the site author.
func BlogPostingJsonLD(a postcache.Article, cfg SiteConfig) string {
	postURL := ArticleURL(cfg.URL, a)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      a.Title,
		"description":   a.Description,
		"datePublished": a.PublishDate,
		"url":           postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	author := a.Author
	if author == "" {
		author = cfg.Author
	}
	if author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  author,
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	if a.Image != "" {
		data["image"] = a.Image
	}
	if len(a.Tags) > 0 {
		data["keywords"] = strings.Join(a.Tags, ", ")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// queryInt reads an integer query parameter, returning fallback when it is
// absent or not a number.
func queryInt(c echo.Context, name string, fallback int) int {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
