// Package sourceurl turns free text such as "add techcrunch" into a
// candidate source URL. It is a deterministic best-effort guess with no
// network access; callers are expected to ask the user to confirm the result.
package sourceurl

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

var stopWords = map[string]struct{}{
	"add":      {},
	"remove":   {},
	"website":  {},
	"site":     {},
	"www":      {},
	"com":      {},
	"http":     {},
	"https":    {},
	"http://":  {},
	"https://": {},
}

type knownSite struct {
	key string
	url string
}

// knownSites is matched in order, so longer and more specific keys come first.
var knownSites = []knownSite{
	{key: "hacker news", url: "https://news.ycombinator.com"},
	{key: "hackernews", url: "https://news.ycombinator.com"},
	{key: "google news", url: "https://news.google.com"},
	{key: "techcrunch", url: "https://techcrunch.com"},
	{key: "the verge", url: "https://www.theverge.com"},
	{key: "verge", url: "https://www.theverge.com"},
	{key: "ars technica", url: "https://arstechnica.com"},
	{key: "wired", url: "https://www.wired.com"},
	{key: "medium", url: "https://medium.com"},
	{key: "book summaries", url: "https://fourminutebooks.com/book-summaries/"},
	{key: "four minute books", url: "https://fourminutebooks.com/book-summaries/"},
	{key: "new york times", url: "https://www.nytimes.com"},
	{key: "nytimes", url: "https://www.nytimes.com"},
	{key: "bbc", url: "https://www.bbc.com/news"},
	{key: "reuters", url: "https://www.reuters.com"},
	{key: "product hunt", url: "https://www.producthunt.com"},
	{key: "github", url: "https://github.com/trending"},
	{key: "reddit", url: "https://www.reddit.com"},
}

// knownTLDs are stripped from the host when deriving a display name.
var knownTLDs = []string{".co.uk", ".com", ".org", ".net", ".io", ".dev", ".ai", ".news", ".co"}

// ExtractURL returns the first absolute http(s) URL literal in text.
func ExtractURL(text string) (string, bool) {
	match := urlPattern.FindString(text)
	if match == "" {
		return "", false
	}
	return match, true
}

// Valid reports whether raw is an absolute http(s) URL with a host.
func Valid(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Hostname() != ""
}

// Resolve guesses a source URL from free text:
//  1. the first URL literal, verbatim;
//  2. otherwise stop words and surrounding punctuation are dropped from the
//     lower-cased text and a token with an interior "." is taken as a bare
//     domain;
//  3. otherwise the first well-known site whose key occurs in the text;
//  4. otherwise https://<text without spaces>.com.
//
// It reports false when nothing is left to guess from.
func Resolve(text string) (string, bool) {
	if u, ok := ExtractURL(text); ok {
		return u, true
	}

	tokens := significantTokens(text)
	if len(tokens) == 0 {
		return "", false
	}

	for _, tok := range tokens {
		if candidate := "https://" + tok; strings.Contains(tok, ".") && Valid(candidate) {
			return candidate, true
		}
	}

	remaining := strings.Join(tokens, " ")
	for _, site := range knownSites {
		if strings.Contains(remaining, site.key) {
			return site.url, true
		}
	}

	guess := "https://" + strings.Join(tokens, "") + ".com"
	if !Valid(guess) {
		return "", false
	}
	return guess, true
}

func significantTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f == "" {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// NameFromURL derives a display name from the URL's domain: a leading
// "www." and a known TLD suffix are removed and the first letter is
// capitalized. The raw URL is returned when it has no host.
func NameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return raw
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	for _, tld := range knownTLDs {
		if strings.HasSuffix(host, tld) && len(host) > len(tld) {
			host = strings.TrimSuffix(host, tld)
			break
		}
	}
	r, size := utf8.DecodeRuneInString(host)
	return string(unicode.ToUpper(r)) + host[size:]
}
