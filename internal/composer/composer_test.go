package composer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/newsdigest/internal/models"
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

func TestMarkdownComposer(t *testing.T) {
	body, err := NewMarkdownComposer().Compose(context.Background(), []models.ContentItem{
		{Title: "Go 1.24 released", Summary: "- generic type aliases\n- faster maps", Link: "https://go.dev/blog/go1.24"},
		{Title: "A [bracketed] title", Summary: "no link"},
	})
	require.NoError(t, err)

	assert.Contains(t, body.Text, "# Your Daily News Digest")
	assert.Contains(t, body.Text, "## [Go 1.24 released](https://go.dev/blog/go1.24)")
	assert.Contains(t, body.HTML, `<a href="https://go.dev/blog/go1.24">Go 1.24 released</a>`)
	assert.Contains(t, body.HTML, "<li>faster maps</li>")
	assert.Contains(t, body.HTML, "A [bracketed] title")
	assert.Contains(t, body.HTML, "<!DOCTYPE html>")
}

func TestMarkdownComposerNoItems(t *testing.T) {
	body, err := NewMarkdownComposer().Compose(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, body.HTML, "Nothing new from your sources today.")
}

func TestLLMComposer(t *testing.T) {
	llm := &fakeCompleter{content: "```markdown\n# Digest\n\n## AI\n\n- [Item](https://a.example)\n```"}

	body, err := NewLLMComposer(llm).Compose(context.Background(), []models.ContentItem{
		{Title: "Item", Summary: "s", Link: "https://a.example"},
	})
	require.NoError(t, err)

	assert.Contains(t, llm.prompt, `"title":"Item"`)
	assert.Equal(t, "# Digest\n\n## AI\n\n- [Item](https://a.example)\n", body.Text)
	assert.Contains(t, body.HTML, "<h1>Digest</h1>")
	assert.Contains(t, body.HTML, `<a href="https://a.example">Item</a>`)
}

func TestLLMComposerErrors(t *testing.T) {
	_, err := NewLLMComposer(&fakeCompleter{err: errors.New("quota")}).Compose(context.Background(), nil)
	assert.ErrorContains(t, err, "quota")

	_, err = NewLLMComposer(&fakeCompleter{content: "   "}).Compose(context.Background(), nil)
	assert.Error(t, err)
}
