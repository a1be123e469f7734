package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
	"github.com/patric-chuzhbe/newsdigest/internal/models"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

const (
	defaultMaxHTMLItems = 10

	// Anchors with shorter text are navigation, not headlines.
	minHeadlineLength = 25
)

// HTMLFetcher downloads the page itself and treats prominent links as
// items. It needs no API keys.
type HTMLFetcher struct {
	http     *resty.Client
	maxItems int
}

func NewHTMLFetcher(maxItems int) *HTMLFetcher {
	if maxItems <= 0 {
		maxItems = defaultMaxHTMLItems
	}
	return &HTMLFetcher{
		http: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "newsdigest/1.0 (+https://github.com/patric-chuzhbe/newsdigest)"),
		maxItems: maxItems,
	}
}

func (f *HTMLFetcher) Fetch(ctx context.Context, source user.SourceRef) []models.ContentItem {
	items, err := f.fetch(ctx, source)
	if err != nil {
		logger.Log.Warnw("error scraping source", "source", source.URL, zap.Error(err))
		return nil
	}
	return items
}

func (f *HTMLFetcher) fetch(ctx context.Context, source user.SourceRef) ([]models.ContentItem, error) {
	resp, err := f.http.R().SetContext(ctx).Get(source.URL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GET %s: status %d", source.URL, resp.StatusCode())
	}

	base, err := url.Parse(source.URL)
	if err != nil {
		return nil, err
	}

	return ExtractHeadlines(bytes.NewReader(resp.Body()), base, f.maxItems)
}

// ExtractHeadlines collects up to limit distinct links whose text looks like
// a headline, in document order. Relative links are resolved against base.
func ExtractHeadlines(r io.Reader, base *url.URL, limit int) ([]models.ContentItem, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var items []models.ContentItem
	seen := map[string]bool{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(items) >= limit {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "nav" || n.Data == "footer") {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if item, ok := headline(n, base); ok && !seen[item.Link] {
				seen[item.Link] = true
				items = append(items, item)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return items, nil
}

func headline(n *html.Node, base *url.URL) (models.ContentItem, bool) {
	href := strings.TrimSpace(getAttr(n, "href"))
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return models.ContentItem{}, false
	}

	title := strings.Join(strings.Fields(extractText(n)), " ")
	if len([]rune(title)) < minHeadlineLength {
		return models.ContentItem{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return models.ContentItem{}, false
	}
	link := base.ResolveReference(ref)
	if link.Scheme != "http" && link.Scheme != "https" {
		return models.ContentItem{}, false
	}

	return models.ContentItem{
		Title:   title,
		Summary: getAttr(n, "title"),
		Link:    link.String(),
	}, true
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
