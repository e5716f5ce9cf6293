package likes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestFetcherReturnsCount(t *testing.T) {
	f := NewFetcher(ProviderFunc(func(_ context.Context, id string) (int, error) {
		require.Equal(t, "post-1", id)
		return 7, nil
	}), nil)
	require.Equal(t, 7, f.Likes(context.Background(), "post-1"))
}

func TestFetcherSubstitutesZeroOnError(t *testing.T) {
	logger := &recordingLogger{}
	f := NewFetcher(ProviderFunc(func(context.Context, string) (int, error) {
		return 0, errors.New("connection refused")
	}), logger)

	require.Equal(t, 0, f.Likes(context.Background(), "post-1"))
	require.Len(t, logger.lines, 1)
	require.Contains(t, logger.lines[0], "post-1")
	require.Contains(t, logger.lines[0], "connection refused")
}

func TestFetcherClampsNegative(t *testing.T) {
	f := NewFetcher(ProviderFunc(func(context.Context, string) (int, error) {
		return -3, nil
	}), nil)
	require.Equal(t, 0, f.Likes(context.Background(), "x"))
}

func TestFetcherTimeout(t *testing.T) {
	logger := &recordingLogger{}
	f := &Fetcher{
		Provider: ProviderFunc(func(ctx context.Context, _ string) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}),
		Timeout: 20 * time.Millisecond,
		Logger:  logger,
	}

	start := time.Now()
	require.Equal(t, 0, f.Likes(context.Background(), "slow"))
	require.Less(t, time.Since(start), time.Second)
	require.Len(t, logger.lines, 1)
}

func TestNilFetcher(t *testing.T) {
	var f *Fetcher
	require.Equal(t, 0, f.Likes(context.Background(), "x"))
}

func TestRESTProviderCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "/rest/v1/post_likes", r.URL.Path)
		assert.Equal(t, "eq.abc", r.URL.Query().Get("post_id"))
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Range", "*/12")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &RESTProvider{BaseURL: srv.URL + "/", APIKey: "secret", Table: "post_likes"}
	n, err := p.Count(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, 12, n)
}

func TestRESTProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := &RESTProvider{BaseURL: srv.URL}
	_, err := p.Count(context.Background(), "abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"*/0", 0, false},
		{"0-9/42", 42, false},
		{"0-9/*", 0, true},
		{"", 0, true},
		{"*/abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseContentRange(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}
