package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/prsbot/signalbot/internal/model"
)

// WebFetcher scrapes a listing page's anchor tags for article links when a
// source has no RSS feed. No example repo or the teacher does HTML
// scraping, so this is the one dependency pulled in purely for this
// component: golang.org/x/net/html, the standard tokenizer used anywhere
// the ecosystem needs to walk arbitrary HTML without a full DOM library.
type WebFetcher struct {
	client *http.Client
	// minTitleLen filters out navigation/footer anchors with short text.
	minTitleLen int
}

// NewWebFetcher builds a WebFetcher with the given per-request timeout.
func NewWebFetcher(timeout time.Duration) *WebFetcher {
	return &WebFetcher{client: &http.Client{Timeout: timeout}, minTitleLen: 15}
}

// Fetch retrieves src.URL and extracts candidate article links: anchors
// whose visible text is long enough to plausibly be a headline, resolved
// against the page's base URL.
func (f *WebFetcher) Fetch(ctx context.Context, src Source) ([]model.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgentFor(src.ID))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", src.Name, resp.StatusCode)
	}

	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	links, err := extractArticleLinks(resp.Body, base, f.minTitleLen)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", src.Name, err)
	}

	items := make([]model.RawItem, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		if _, dup := seen[l.href]; dup {
			continue
		}
		seen[l.href] = struct{}{}
		items = append(items, model.RawItem{
			SourceID:   src.ID,
			SourceName: src.Name,
			URL:        l.href,
			Title:      l.text,
			RegionHint: src.RegionHint,
		})
	}
	return items, nil
}

type anchorLink struct {
	href string
	text string
}

func extractArticleLinks(r io.Reader, base *url.URL, minTitleLen int) ([]anchorLink, error) {
	tokenizer := html.NewTokenizer(r)
	var links []anchorLink
	var inAnchor bool
	var href string
	var textBuilder strings.Builder

	flush := func() {
		text := strings.TrimSpace(textBuilder.String())
		if href != "" && len(text) >= minTitleLen {
			if resolved, err := base.Parse(href); err == nil {
				links = append(links, anchorLink{href: resolved.String(), text: text})
			}
		}
		href = ""
		textBuilder.Reset()
	}

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if inAnchor {
				flush()
			}
			if tokenizer.Err() == io.EOF {
				return links, nil
			}
			return links, tokenizer.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := tokenizer.Token()
			if tok.Data == "a" {
				if inAnchor {
					flush()
				}
				inAnchor = true
				for _, attr := range tok.Attr {
					if attr.Key == "href" {
						href = attr.Val
					}
				}
			}
		case html.TextToken:
			if inAnchor {
				textBuilder.WriteString(string(tokenizer.Text()))
				textBuilder.WriteString(" ")
			}
		case html.EndTagToken:
			tok := tokenizer.Token()
			if tok.Data == "a" && inAnchor {
				flush()
				inAnchor = false
			}
		}
	}
}
