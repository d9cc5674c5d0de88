// Package fetch pulls raw items from configured RSS, Google News RSS, and
// web sources, fanning out across sources with bounded concurrency and
// tracking per-source health so a persistently broken source stops being
// retried every cycle.
//
// Grounded on rss.py's RSSFetcher: user-agent rotation by source-id hash,
// the google_news_rss query-URL rewrite, and the RSS/Atom entry parsing
// shape. No example repo carries a feed-parsing library, so RSS/Atom
// parsing is hand-rolled over encoding/xml rather than reaching for the
// stdlib JSON decoder's cousin — there is no ecosystem feed-parsing
// dependency anywhere in the pack to adopt instead.
package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prsbot/signalbot/internal/model"
)

// userAgents rotates across a small pool so a single source never sees the
// exact same UA every cycle.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
	"signalbot/1.0 (+incident monitor)",
}

func userAgentFor(sourceID string) string {
	var h uint32
	for _, c := range sourceID {
		h = h*31 + uint32(c)
	}
	return userAgents[int(h)%len(userAgents)]
}

// Source is the subset of a configured feed a fetcher needs.
type Source struct {
	ID         string
	Type       string // rss | web | google_news_rss
	Name       string
	URL        string
	Query      string
	RegionHint string
	HL, GL, CEID string
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
	Entries []atomEntry `xml:"entry"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Link    struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Summary string `xml:"summary"`
	Updated string `xml:"updated"`
}

// RSSFetcher fetches standard RSS/Atom feeds and Google News RSS searches
// over HTTP.
type RSSFetcher struct {
	client *http.Client
}

// NewRSSFetcher builds an RSSFetcher with the given per-request timeout.
func NewRSSFetcher(timeout time.Duration) *RSSFetcher {
	return &RSSFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch dispatches by source type.
func (f *RSSFetcher) Fetch(ctx context.Context, src Source) ([]model.RawItem, error) {
	switch src.Type {
	case "google_news_rss":
		return f.fetchGoogleNews(ctx, src)
	case "web":
		return nil, nil // handled by WebFetcher
	default:
		return f.fetchRSS(ctx, src)
	}
}

func (f *RSSFetcher) fetchGoogleNews(ctx context.Context, src Source) ([]model.RawItem, error) {
	if src.Query == "" {
		return nil, nil
	}
	hl, gl, ceid := src.HL, src.GL, src.CEID
	if hl == "" {
		hl = "ru"
	}
	if gl == "" {
		gl = "RU"
	}
	if ceid == "" {
		ceid = "RU:ru"
	}
	u := fmt.Sprintf("https://news.google.com/rss/search?q=%s&hl=%s&gl=%s&ceid=%s",
		url.QueryEscape(src.Query), hl, gl, ceid)

	temp := src
	temp.Type = "rss"
	temp.URL = u
	return f.fetchRSS(ctx, temp)
}

func (f *RSSFetcher) fetchRSS(ctx context.Context, src Source) ([]model.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgentFor(src.ID))
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", src.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body for %s: %w", src.Name, err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	var items []model.RawItem
	for _, it := range feed.Channel.Items {
		item := parseRSSItem(it, src)
		if item != nil {
			items = append(items, *item)
		}
	}
	for _, e := range feed.Entries {
		item := parseAtomEntry(e, src)
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

func parseRSSItem(it rssItem, src Source) *model.RawItem {
	title := strings.TrimSpace(it.Title)
	if it.Link == "" || title == "" {
		return nil
	}
	item := &model.RawItem{
		SourceID:   src.ID,
		SourceName: src.Name,
		URL:        it.Link,
		Title:      title,
		RawHTML:    it.Description,
		RegionHint: src.RegionHint,
	}
	if t, ok := parseFeedDate(it.PubDate); ok {
		item.PublishedAt = &t
	}
	return item
}

func parseAtomEntry(e atomEntry, src Source) *model.RawItem {
	title := strings.TrimSpace(e.Title)
	if e.Link.Href == "" || title == "" {
		return nil
	}
	item := &model.RawItem{
		SourceID:   src.ID,
		SourceName: src.Name,
		URL:        e.Link.Href,
		Title:      title,
		RawHTML:    e.Summary,
		RegionHint: src.RegionHint,
	}
	if t, ok := parseFeedDate(e.Updated); ok {
		item.PublishedAt = &t
	}
	return item
}

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z",
}

func parseFeedDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
