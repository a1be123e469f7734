// Package composer turns content items into the digest email body. Digests
// are written as markdown and rendered to HTML with goldmark.
package composer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/patric-chuzhbe/newsdigest/internal/models"
)

const digestTitle = "Your Daily News Digest"

type completer interface {
	Complete(ctx context.Context, system, prompt string, jsonMode bool) (string, error)
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

// render converts markdown to HTML wrapped in a minimal email document.
func render(md goldmark.Markdown, markdown string) (models.DigestBody, error) {
	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html><html><body style="font-family: Arial, sans-serif; max-width: 640px; margin: auto;">`)
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return models.DigestBody{}, fmt.Errorf("render digest: %w", err)
	}
	buf.WriteString(`</body></html>`)

	return models.DigestBody{Text: markdown, HTML: buf.String()}, nil
}

// MarkdownComposer lays items out as a plain list without calling any
// model.
type MarkdownComposer struct {
	md goldmark.Markdown
}

func NewMarkdownComposer() *MarkdownComposer {
	return &MarkdownComposer{md: newMarkdown()}
}

func (c *MarkdownComposer) Compose(_ context.Context, items []models.ContentItem) (models.DigestBody, error) {
	return render(c.md, itemsToMarkdown(items))
}

func itemsToMarkdown(items []models.ContentItem) string {
	var sb strings.Builder
	sb.WriteString("# " + digestTitle + "\n\n")
	if len(items) == 0 {
		sb.WriteString("Nothing new from your sources today.\n")
		return sb.String()
	}
	for _, item := range items {
		title := escape(item.Title)
		if item.Link != "" {
			fmt.Fprintf(&sb, "## [%s](%s)\n\n", title, item.Link)
		} else {
			fmt.Fprintf(&sb, "## %s\n\n", title)
		}
		if summary := strings.TrimSpace(item.Summary); summary != "" {
			sb.WriteString(summary + "\n\n")
		}
	}
	return sb.String()
}

func escape(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}

const newsletterSystemPrompt = "You are a professional newsletter writer."

const newsletterPromptTemplate = `Create a morning news digest email from the following content.
Organize by topic and relevance. Format as Markdown with:
- A top-level heading indicating this is a daily digest
- Sections by topic
- Bullet points for easy reading
- Source links where available
- Professional and clean formatting

Content:
%s`

// LLMComposer asks a language model to write the digest.
type LLMComposer struct {
	llm completer
	md  goldmark.Markdown
}

func NewLLMComposer(llm completer) *LLMComposer {
	return &LLMComposer{llm: llm, md: newMarkdown()}
}

func (c *LLMComposer) Compose(ctx context.Context, items []models.ContentItem) (models.DigestBody, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return models.DigestBody{}, err
	}

	markdown, err := c.llm.Complete(ctx, newsletterSystemPrompt, fmt.Sprintf(newsletterPromptTemplate, payload), false)
	if err != nil {
		return models.DigestBody{}, fmt.Errorf("compose digest: %w", err)
	}
	markdown = stripFence(markdown)
	if strings.TrimSpace(markdown) == "" {
		return models.DigestBody{}, fmt.Errorf("compose digest: empty response")
	}

	return render(c.md, markdown)
}

// stripFence removes a ```markdown fence wrapped around the whole answer.
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return s
	}
	trimmed = strings.TrimSuffix(trimmed, "```")
	if nl := strings.Index(trimmed, "\n"); nl >= 0 {
		trimmed = trimmed[nl+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "```")
	}
	return strings.TrimSpace(trimmed) + "\n"
}
