// Package fetcher scrapes a subscriber's sources into content items.
// Fetchers never return errors: a source that cannot be scraped contributes
// nothing and the failure is logged.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
	"github.com/patric-chuzhbe/newsdigest/internal/models"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

const (
	DefaultFirecrawlBaseURL = "https://api.firecrawl.dev"

	// maxMarkdownChars bounds how much scraped text goes into the extraction
	// prompt.
	maxMarkdownChars = 3000
)

type completer interface {
	Complete(ctx context.Context, system, prompt string, jsonMode bool) (string, error)
}

type fetcher interface {
	Fetch(ctx context.Context, source user.SourceRef) []models.ContentItem
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error"`
}

const extractionSystemPrompt = "You are a content curator that extracts relevant information."

const extractionPromptTemplate = `Extract the most relevant and interesting content from this source: %s (%s).

Content:
%s

Return a JSON object with an "items" array containing 5-10 items, each with:
- title: Brief descriptive title
- summary: 2-3 bullet points summarizing key information
- link: URL if available (or null)`

// FirecrawlFetcher scrapes pages through the Firecrawl API and lets a
// language model pick the interesting items out of the markdown.
type FirecrawlFetcher struct {
	http     *resty.Client
	llm      completer
	fallback fetcher
}

type FirecrawlOption func(*FirecrawlFetcher)

// WithFallback is consulted when Firecrawl yields nothing for a source.
func WithFallback(f fetcher) FirecrawlOption {
	return func(ff *FirecrawlFetcher) {
		ff.fallback = f
	}
}

func NewFirecrawlFetcher(baseURL, apiKey string, llm completer, options ...FirecrawlOption) *FirecrawlFetcher {
	if baseURL == "" {
		baseURL = DefaultFirecrawlBaseURL
	}
	f := &FirecrawlFetcher{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(apiKey).
			SetTimeout(60 * time.Second),
		llm: llm,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *FirecrawlFetcher) Fetch(ctx context.Context, source user.SourceRef) []models.ContentItem {
	items, err := f.fetch(ctx, source)
	if err != nil {
		logger.Log.Warnw("error scraping source", "source", source.URL, zap.Error(err))
	}
	if len(items) == 0 && f.fallback != nil {
		return f.fallback.Fetch(ctx, source)
	}
	return items
}

func (f *FirecrawlFetcher) fetch(ctx context.Context, source user.SourceRef) ([]models.ContentItem, error) {
	var scraped scrapeResponse
	resp, err := f.http.R().
		SetContext(ctx).
		SetBody(scrapeRequest{URL: source.URL, Formats: []string{"markdown"}, OnlyMainContent: true}).
		SetResult(&scraped).
		SetError(&scraped).
		Post("/v1/scrape")
	if err != nil {
		return nil, fmt.Errorf("firecrawl request: %w", err)
	}
	if resp.IsError() || !scraped.Success {
		return nil, fmt.Errorf("firecrawl: status %d: %s", resp.StatusCode(), scraped.Error)
	}

	markdown := truncate(scraped.Data.Markdown, maxMarkdownChars)
	if strings.TrimSpace(markdown) == "" {
		return nil, nil
	}

	content, err := f.llm.Complete(
		ctx,
		extractionSystemPrompt,
		fmt.Sprintf(extractionPromptTemplate, source.Name, source.URL, markdown),
		true,
	)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}

	return parseItems(content)
}

type extractedItem struct {
	Title   string   `json:"title"`
	Summary flexText `json:"summary"`
	Link    *string  `json:"link"`
}

// flexText accepts either a string or a list of strings; models return
// "bullet points" in both shapes.
type flexText string

func (t *flexText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = flexText(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	for i, line := range list {
		list[i] = "- " + strings.TrimPrefix(strings.TrimSpace(line), "- ")
	}
	*t = flexText(strings.Join(list, "\n"))
	return nil
}

func parseItems(content string) ([]models.ContentItem, error) {
	var payload struct {
		Items []extractedItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode extracted items: %w", err)
	}

	items := make([]models.ContentItem, 0, len(payload.Items))
	for _, it := range payload.Items {
		if strings.TrimSpace(it.Title) == "" {
			continue
		}
		item := models.ContentItem{
			Title:   strings.TrimSpace(it.Title),
			Summary: strings.TrimSpace(string(it.Summary)),
		}
		if it.Link != nil {
			item.Link = strings.TrimSpace(*it.Link)
		}
		items = append(items, item)
	}
	return items, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
