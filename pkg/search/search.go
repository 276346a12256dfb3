// Package search discovers in-domain seed URLs through a web search engine.
//
// Providers query DuckDuckGo in three different ways. A Cascade tries them
// in order and stops at the first one that yields results. Discovery is
// best effort: exhaustion produces an empty result, never an error.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jmylchreest/sitescrape/internal/logger"
	"github.com/jmylchreest/sitescrape/pkg/fetcher"
	"github.com/jmylchreest/sitescrape/pkg/page"
	"github.com/jmylchreest/sitescrape/pkg/scope"
)

// Provider queries one search backend for pages of a domain.
type Provider interface {
	// Search returns hits for the domain, already restricted to it.
	Search(ctx context.Context, target scope.Scope, maxResults int) ([]page.SearchHit, error)

	// Name identifies the provider in logs.
	Name() string
}

// Searcher is the capability consumed by the crawler.
type Searcher interface {
	Discover(ctx context.Context, target scope.Scope, maxResults int) []page.SearchHit
}

var (
	// ErrRateLimited indicates the backend throttled the request.
	ErrRateLimited = errors.New("search rate limited")
	// ErrNoResults indicates the backend answered without usable hits.
	ErrNoResults = errors.New("no search results")
)

// Config locates the DuckDuckGo endpoints and controls requests.
type Config struct {
	// TokenEndpoint serves the page embedding the vqd token.
	TokenEndpoint string
	// APIEndpoint serves the structured d.js result payload.
	APIEndpoint string
	// HTMLEndpoint serves the full HTML result page.
	HTMLEndpoint string
	// LiteEndpoint serves the text-only result page.
	LiteEndpoint string
	Region       string
	Options      fetcher.Options
}

// DefaultConfig returns the public DuckDuckGo endpoints.
func DefaultConfig() Config {
	return Config{
		TokenEndpoint: "https://duckduckgo.com/",
		APIEndpoint:   "https://links.duckduckgo.com/d.js",
		HTMLEndpoint:  "https://html.duckduckgo.com/html/",
		LiteEndpoint:  "https://lite.duckduckgo.com/lite/",
		Region:        "wt-wt",
	}
}

// Cascade tries each provider in order until one yields hits.
type Cascade struct {
	providers []Provider
}

// NewCascade creates a provider chain.
func NewCascade(providers ...Provider) *Cascade {
	return &Cascade{providers: providers}
}

// NewDefault builds the standard chain: structured API, HTML page, lite page.
func NewDefault(f fetcher.Fetcher, cfg Config) *Cascade {
	return NewCascade(
		NewAPIProvider(f, cfg),
		NewHTMLProvider(f, cfg),
		NewLiteProvider(f, cfg),
	)
}

// Discover returns up to maxResults deduplicated in-domain hits from the
// first provider that produces any. It never fails.
func (c *Cascade) Discover(ctx context.Context, target scope.Scope, maxResults int) []page.SearchHit {
	if maxResults <= 0 {
		return nil
	}

	for _, p := range c.providers {
		if ctx.Err() != nil {
			return nil
		}

		hits, err := p.Search(ctx, target, maxResults)
		if err != nil {
			logger.Debug("search provider failed", "provider", p.Name(), "domain", target.Domain(), "error", err)
			continue
		}

		hits = Dedupe(target, hits, maxResults)
		if len(hits) == 0 {
			logger.Debug("search provider returned no in-domain hits", "provider", p.Name(), "domain", target.Domain())
			continue
		}

		logger.Info("search discovered seeds", "provider", p.Name(), "domain", target.Domain(), "hits", len(hits))
		return hits
	}

	logger.Info("search discovered no seeds", "domain", target.Domain())
	return nil
}

// Names lists the chain in priority order.
func (c *Cascade) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Dedupe drops out-of-scope and repeated hits (by normalized URL) and
// truncates to max. Hit URLs are replaced by their normalized form.
func Dedupe(target scope.Scope, hits []page.SearchHit, max int) []page.SearchHit {
	out := make([]page.SearchHit, 0, len(hits))
	seen := make(map[string]bool)
	for _, h := range hits {
		normalized, err := scope.Normalize(h.URL)
		if err != nil || !target.Contains(normalized) || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, page.SearchHit{URL: normalized, Title: h.Title})
		if len(out) >= max {
			break
		}
	}
	return out
}

// Query returns the site-restricted query string for a domain.
func Query(domain string) string {
	return "site:" + domain
}

// CleanResultURL unwraps DuckDuckGo redirect links ("/l/?uddg=...") and
// resolves protocol-relative URLs. It returns "" for unusable values.
func CleanResultURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if strings.HasPrefix(u.Path, "/l/") && (u.Host == "" || strings.HasSuffix(u.Hostname(), "duckduckgo.com")) {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// fetchPage performs a search request and maps throttling to ErrRateLimited.
func fetchPage(ctx context.Context, f fetcher.Fetcher, rawURL string, opts fetcher.Options) (fetcher.Result, error) {
	res, err := f.Fetch(ctx, rawURL, opts)
	if err != nil {
		var fe *fetcher.FetchError
		if errors.As(err, &fe) && fe.StatusCode() == http.StatusTooManyRequests {
			return res, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		var se *fetcher.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
			return res, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return res, err
	}
	// DuckDuckGo answers throttled clients with a 202 challenge page.
	if res.StatusCode == http.StatusAccepted || res.StatusCode == http.StatusTooManyRequests {
		return res, fmt.Errorf("%w: status %d", ErrRateLimited, res.StatusCode)
	}
	return res, nil
}

func withQuery(endpoint string, params url.Values) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode()
}
