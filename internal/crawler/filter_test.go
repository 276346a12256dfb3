package crawler

import (
	"context"
	"strings"
	"testing"

	"github.com/jmylchreest/sitescrape/pkg/page"
)

func TestNewLinkFilter_Empty(t *testing.T) {
	f, err := NewLinkFilter("", "")
	if err != nil {
		t.Fatalf("NewLinkFilter() error = %v", err)
	}
	if f != nil {
		t.Error("expected nil filter for empty patterns")
	}
	if !f.Allow("https://example.com/anything") {
		t.Error("nil filter should allow every URL")
	}
}

func TestNewLinkFilter_InvalidPattern(t *testing.T) {
	if _, err := NewLinkFilter("[invalid", ""); err == nil {
		t.Error("expected error for invalid include pattern")
	}
	if _, err := NewLinkFilter("", "(unclosed"); err == nil {
		t.Error("expected error for invalid exclude pattern")
	}
}

func TestLinkFilter_Allow(t *testing.T) {
	f, err := NewLinkFilter(`/docs/`, `\.(zip|tar\.gz)$`)
	if err != nil {
		t.Fatalf("NewLinkFilter() error = %v", err)
	}

	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/docs/intro", true},
		{"https://example.com/blog/post", false},
		{"https://example.com/docs/release.zip", false},
		{"https://example.com/docs/src.tar.gz", false},
	}
	for _, tt := range tests {
		if got := f.Allow(tt.url); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestCrawl_FilterRestrictsLinks(t *testing.T) {
	f := &siteFetcher{pages: map[string]string{
		"https://example.com/":           htmlPage("Home", "/docs/a", "/blog/b"),
		"https://example.com/docs/a":     htmlPage("A", "/docs/b.zip"),
		"https://example.com/blog/b":     htmlPage("Blog"),
		"https://example.com/docs/b.zip": htmlPage("Zip"),
	}}
	filter, err := NewLinkFilter(`/docs/`, `\.zip$`)
	if err != nil {
		t.Fatal(err)
	}

	c := newCrawler(f, &stubSearcher{hits: []page.SearchHit{{URL: "https://example.com/blog/b"}}}, 10)
	c.config.Filter = filter
	out := c.Crawl(context.Background())

	got := strings.Join(pageURLs(out.Pages), ",")
	if got != "https://example.com/,https://example.com/docs/a" {
		t.Errorf("pages = %s", got)
	}
}
