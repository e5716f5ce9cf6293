package likes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RESTProvider counts likes through a PostgREST-compatible endpoint, such as
// the REST interface of a hosted Postgres backend.
type RESTProvider struct {
	BaseURL string // e.g. https://project.example.co
	APIKey  string
	Table   string // default "likes"
	Column  string // default "post_id"
	Client  *http.Client
}

// Count issues a HEAD request with an exact-count preference and reads the
// total from the Content-Range header.
func (p *RESTProvider) Count(ctx context.Context, postID string) (int, error) {
	table := p.Table
	if table == "" {
		table = "likes"
	}
	column := p.Column
	if column == "" {
		column = "post_id"
	}
	base, err := url.Parse(strings.TrimRight(p.BaseURL, "/"))
	if err != nil {
		return 0, fmt.Errorf("likes: parse base url: %w", err)
	}
	base.Path += "/rest/v1/" + url.PathEscape(table)
	q := url.Values{}
	q.Set("select", "*")
	q.Set(column, "eq."+postID)
	base.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, base.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("likes: build request: %w", err)
	}
	req.Header.Set("Prefer", "count=exact")
	if p.APIKey != "" {
		req.Header.Set("apikey", p.APIKey)
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("likes: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("likes: unexpected status %d", resp.StatusCode)
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

// parseContentRange extracts N from "*/N" or "0-9/N".
func parseContentRange(v string) (int, error) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 {
		return 0, fmt.Errorf("likes: missing count in content-range %q", v)
	}
	total := strings.TrimSpace(v[i+1:])
	if total == "*" {
		return 0, fmt.Errorf("likes: count not provided in content-range %q", v)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("likes: parse content-range %q: %w", v, err)
	}
	return n, nil
}
