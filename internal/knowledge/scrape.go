package knowledge

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// Pages larger than this are truncated before extraction.
const maxPageBytes = 2 << 20

// skipElements contribute no visible text.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"head": true, "iframe": true, "svg": true,
}

// blockElements delimit paragraphs in the extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"br": true, "blockquote": true,
}

// IngestURL fetches a web page, extracts its visible text and runs it
// through the normal chunk/embed/store pipeline. The page URL becomes the
// document source.
func (s *Store) IngestURL(ctx context.Context, pageURL string) (int, error) {
	text, err := FetchPageText(ctx, s.client, pageURL)
	if err != nil {
		return 0, err
	}
	log.Printf("[Knowledge] Scraped %s (%d chars of text)", pageURL, len(text))
	return s.IngestText(ctx, text, pageURL)
}

// FetchPageText downloads pageURL and returns its visible text.
func FetchPageText(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", "dealerbot/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	text, err := ExtractText(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", pageURL, err)
	}
	if text == "" {
		return "", fmt.Errorf("no text content at %s", pageURL)
	}
	return text, nil
}

// ExtractText returns the visible text of an HTML document. Block elements
// become paragraph breaks so ChunkText can split on them.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				current = append(current, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			flush()
		}
	}
	walk(doc)
	flush()

	return strings.Join(paragraphs, "\n\n"), nil
}
