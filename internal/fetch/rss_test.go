package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Test feed</title>
<item>
  <title>Авария на теплотрассе в Воронеже</title>
  <link>https://example.com/a?utm_source=tg</link>
  <description>Подробности происшествия</description>
  <pubDate>Mon, 02 Jan 2006 15:04:05 +0300</pubDate>
</item>
</channel></rss>`

func TestRSSFetcherParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	f := NewRSSFetcher(5 * time.Second)
	items, err := f.Fetch(context.Background(), Source{ID: "src-1", Type: "rss", Name: "Test", URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Авария на теплотрассе в Воронеже", items[0].Title)
	require.NotNil(t, items[0].PublishedAt)
}

func TestRSSFetcherNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewRSSFetcher(5 * time.Second)
	_, err := f.Fetch(context.Background(), Source{ID: "src-1", Type: "rss", Name: "Test", URL: srv.URL})
	require.Error(t, err)
}

func TestRSSFetcherGoogleNewsNoQuerySkips(t *testing.T) {
	f := NewRSSFetcher(5 * time.Second)
	items, err := f.Fetch(context.Background(), Source{ID: "src-1", Type: "google_news_rss"})
	require.NoError(t, err)
	require.Empty(t, items)
}
