package mdxblog

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/mdxblog/markdown"
	"github.com/eringen/mdxblog/postcache"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// ArticleFragment wraps a rendered article body in an <article> element
// carrying the article's slug and type.
func ArticleFragment(a postcache.Article, body []byte) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		open := `<article class="mdx" data-slug="` + templ.EscapeString(a.Slug) +
			`" data-type="` + templ.EscapeString(a.Type) + `">`
		if _, err := io.WriteString(w, open); err != nil {
			return err
		}
		if err := markdown.Markdown(body).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</article>")
		return err
	})
}
