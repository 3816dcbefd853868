package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	skippedTags       = map[string]bool{"script": true, "style": true, "noscript": true}
)

// FetchTool retrieves a web page and returns its readable text, stripped of
// markup.
type FetchTool struct {
	httpClient *http.Client
}

// NewFetchTool creates a fetch tool with a 30-second request timeout.
func NewFetchTool() *FetchTool {
	return &FetchTool{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (t *FetchTool) Name() string { return "fetch" }

func (t *FetchTool) Description() string {
	return `Fetch and extract text content from a web page. Args: {"url": "https://..."}`
}

func (t *FetchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	urlStr, ok := args["url"].(string)
	if !ok || urlStr == "" {
		return "", fmt.Errorf("fetch requires a 'url' argument")
	}

	body, err := t.get(ctx, urlStr)
	if err != nil {
		return "", err
	}

	text := extractText(string(body))
	if len(text) > 10000 {
		text = text[:10000] + "\n...[truncated]"
	}
	return text, nil
}

func (t *FetchTool) get(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; GoResearchBot/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch error %d for %s", resp.StatusCode, urlStr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// extractText strips markup from htmlContent, dropping script/style content
// and collapsing whitespace. Falls back to a regex tag-strip if the document
// doesn't parse as HTML.
func extractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return cleanWhitespace(tagPattern.ReplaceAllString(htmlContent, ""))
	}

	var text strings.Builder
	collectText(doc, &text)
	return cleanWhitespace(text.String())
}

func collectText(n *html.Node, out *strings.Builder) {
	if n.Type == html.TextNode {
		out.WriteString(n.Data)
		out.WriteString(" ")
	}
	if n.Type == html.ElementNode && skippedTags[n.Data] {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
}

func cleanWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
