package normalize

import (
	"strings"
	"testing"
)

func TestURLIdempotent(t *testing.T) {
	urls := []string{
		"https://Example.COM/news/article/?utm_source=tg&b=2&a=1#frag",
		"https://example.com/news/article/",
		"https://example.com/",
		"https://example.com/news/article?ref=abc&id=9",
	}
	for _, u := range urls {
		once := URL(u, nil)
		twice := URL(once, nil)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", u, once, twice)
		}
	}
}

func TestURLStripsTrackingParams(t *testing.T) {
	got := URL("https://example.com/a?utm_source=x&utm_medium=y&id=5&ysclid=z", nil)
	if strings.Contains(got, "utm_source") || strings.Contains(got, "utm_medium") || strings.Contains(got, "ysclid") {
		t.Fatalf("tracking params leaked into %q", got)
	}
	if !strings.Contains(got, "id=5") {
		t.Fatalf("expected id=5 to survive, got %q", got)
	}
}

func TestURLLowercasesHostAndDropsFragment(t *testing.T) {
	got := URL("https://EXAMPLE.com/path#section", nil)
	if strings.Contains(got, "#") {
		t.Fatalf("fragment leaked into %q", got)
	}
	if !strings.Contains(got, "example.com") {
		t.Fatalf("expected lowercase host, got %q", got)
	}
}

func TestURLTrimsTrailingSlashExceptRoot(t *testing.T) {
	if got := URL("https://example.com/news/", nil); got != "https://example.com/news" {
		t.Fatalf("expected trailing slash trimmed, got %q", got)
	}
	if got := URL("https://example.com/", nil); got != "https://example.com/" {
		t.Fatalf("expected root slash kept, got %q", got)
	}
}
