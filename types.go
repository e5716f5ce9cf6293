package mdxblog

import (
	"time"

	"github.com/eringen/mdxblog/postcache"
)

// Contact is a message left through the public contact form.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikeResult is returned by the like endpoint.
type LikeResult struct {
	PostID  string `json:"postId"`
	Likes   int    `json:"likes"`
	Counted bool   `json:"counted"`
}

// ArticlePage is the single-article API payload.
type ArticlePage struct {
	Article   postcache.Article   `json:"article"`
	HTML      string              `json:"html"`
	Related   []postcache.Article `json:"related"`
	JSONLD    string              `json:"jsonLd"`
	Canonical string              `json:"canonical"`
}
