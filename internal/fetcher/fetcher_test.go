package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/newsdigest/internal/models"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

type fakeCompleter struct {
	content string
	err     error
	prompt  string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string, _ bool) (string, error) {
	f.prompt = prompt
	return f.content, f.err
}

type staticFetcher []models.ContentItem

func (s staticFetcher) Fetch(context.Context, user.SourceRef) []models.ContentItem {
	return s
}

func newFirecrawlServer(t *testing.T, status int, markdown string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))

		var req scrapeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"markdown"}, req.Formats)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"success": false, "error": "blocked"}`))
			return
		}
		body, _ := json.Marshal(map[string]any{"success": true, "data": map[string]any{"markdown": markdown}})
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFirecrawlFetcher(t *testing.T) {
	server := newFirecrawlServer(t, http.StatusOK, strings.Repeat("x", 5000))
	llm := &fakeCompleter{content: `{"items": [
		{"title": "First", "summary": "one line", "link": "https://a.example/1"},
		{"title": "Second", "summary": ["point a", "- point b"], "link": null},
		{"title": "", "summary": "dropped"}
	]}`}

	items := NewFirecrawlFetcher(server.URL, "fc-key", llm).
		Fetch(context.Background(), user.SourceRef{Name: "Example", URL: "https://a.example"})

	assert.Equal(t, []models.ContentItem{
		{Title: "First", Summary: "one line", Link: "https://a.example/1"},
		{Title: "Second", Summary: "- point a\n- point b"},
	}, items)
	assert.Contains(t, llm.prompt, strings.Repeat("x", maxMarkdownChars))
	assert.NotContains(t, llm.prompt, strings.Repeat("x", maxMarkdownChars+1))
}

func TestFirecrawlFetcherNeverFails(t *testing.T) {
	source := user.SourceRef{Name: "Example", URL: "https://a.example"}

	t.Run("scrape rejected", func(t *testing.T) {
		server := newFirecrawlServer(t, http.StatusForbidden, "")
		items := NewFirecrawlFetcher(server.URL, "fc-key", &fakeCompleter{}).Fetch(context.Background(), source)
		assert.Empty(t, items)
	})

	t.Run("extraction fails", func(t *testing.T) {
		server := newFirecrawlServer(t, http.StatusOK, "# news")
		items := NewFirecrawlFetcher(server.URL, "fc-key", &fakeCompleter{err: errors.New("llm down")}).Fetch(context.Background(), source)
		assert.Empty(t, items)
	})

	t.Run("bad extraction payload", func(t *testing.T) {
		server := newFirecrawlServer(t, http.StatusOK, "# news")
		items := NewFirecrawlFetcher(server.URL, "fc-key", &fakeCompleter{content: "nope"}).Fetch(context.Background(), source)
		assert.Empty(t, items)
	})

	t.Run("falls back", func(t *testing.T) {
		server := newFirecrawlServer(t, http.StatusForbidden, "")
		fallback := staticFetcher{{Title: "From fallback"}}
		items := NewFirecrawlFetcher(server.URL, "fc-key", &fakeCompleter{}, WithFallback(fallback)).Fetch(context.Background(), source)
		assert.Equal(t, []models.ContentItem(fallback), items)
	})
}

const testPage = `<!doctype html>
<html><head><title>News</title><script>var a = "<a href='/x'>not a real link at all, really</a>";</script></head>
<body>
<nav><a href="/about">About this wonderful website and team</a></nav>
<a href="/home">Home</a>
<h2><a href="/2025/01/first-story">  The first story of the day is quite long </a></h2>
<h2><a href="https://other.example/second" title="teaser">A second story from another publication</a></h2>
<a href="/2025/01/first-story">The first story of the day is quite long</a>
<a href="mailto:desk@example.com">Write to the news desk about anything</a>
<a href="#top">Back to the top of this very page</a>
<h2><a href="/third">Third story that goes over the limit of items</a></h2>
</body></html>`

func TestExtractHeadlines(t *testing.T) {
	base, err := url.Parse("https://news.example/index.html")
	require.NoError(t, err)

	items, err := ExtractHeadlines(strings.NewReader(testPage), base, 2)
	require.NoError(t, err)

	assert.Equal(t, []models.ContentItem{
		{Title: "The first story of the day is quite long", Link: "https://news.example/2025/01/first-story"},
		{Title: "A second story from another publication", Summary: "teaser", Link: "https://other.example/second"},
	}, items)
}

func TestHTMLFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage))
	}))
	defer server.Close()

	f := NewHTMLFetcher(0)

	items := f.Fetch(context.Background(), user.SourceRef{Name: "News", URL: server.URL + "/"})
	require.Len(t, items, 3)
	assert.Equal(t, server.URL+"/third", items[2].Link)

	assert.Empty(t, f.Fetch(context.Background(), user.SourceRef{Name: "News", URL: server.URL + "/missing"}))
}
