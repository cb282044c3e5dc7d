// Package webpage fetches a page and reduces it to markdown text for LLM prompts.
package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

const maxBodyBytes = 2 << 20

// Reader downloads pages and converts their main content to markdown.
type Reader struct {
	httpClient *http.Client
	maxChars   int
}

func NewReader(maxChars int) *Reader {
	if maxChars <= 0 {
		maxChars = 4000
	}
	return &Reader{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxChars:   maxChars,
	}
}

// Read returns a markdown excerpt of the page at pageURL.
func (r *Reader) Read(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; taskflow-research/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("fetch %s: unsupported content type %q", pageURL, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	return r.Convert(pageURL, string(body))
}

// Convert turns raw HTML into a trimmed markdown excerpt.
func (r *Reader) Convert(pageURL, rawHTML string) (string, error) {
	content := mainContent(rawHTML)

	converter := md.NewConverter(hostOf(pageURL), true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("script", "style", "nav", "footer", "header", "form", "iframe", "noscript")

	markdown, err := converter.ConvertString(content)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}

	markdown = strings.TrimSpace(markdown)
	if len(markdown) > r.maxChars {
		markdown = markdown[:r.maxChars]
	}
	return markdown, nil
}

// mainContent prefers <article> or <main> when the page has one.
func mainContent(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "article" || n.Data == "main") {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found == nil {
		return rawHTML
	}
	var sb strings.Builder
	if err := html.Render(&sb, found); err != nil {
		return rawHTML
	}
	return sb.String()
}

func hostOf(pageURL string) string {
	rest := pageURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
